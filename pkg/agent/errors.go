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

package agent

import "fmt"

// CompletionError reports a failed completion call. It aborts the turn;
// the history appended before the failure is kept.
type CompletionError struct {
	Iteration int
	Err       error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
