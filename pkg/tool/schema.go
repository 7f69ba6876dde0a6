// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// generateSchema creates the input schema for T from its struct tags and
// returns it together with the list of required properties.
//
// Supported tags:
//   - json:"name" - property name
//   - jsonschema:"required" - required property
//   - jsonschema:"description=..." - property description
//   - jsonschema:"enum=a,enum=b" - allowed values
//   - jsonschema:"minimum=N,maximum=M" - numeric constraints
func generateSchema[T any]() (json.RawMessage, []string, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
		AllowAdditionalProperties:  true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, err
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, nil, err
	}
	if schemaMap["type"] != "object" {
		return nil, nil, fmt.Errorf("tool input must be an object, got %v", schemaMap["type"])
	}

	// The provider rejects $schema and $id inside input_schema.
	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")
	if _, ok := schemaMap["properties"]; !ok {
		schemaMap["properties"] = map[string]any{}
	}

	var required []string
	if list, ok := schemaMap["required"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				required = append(required, s)
			}
		}
	}

	out, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, nil, err
	}
	return out, required, nil
}
