package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupArgs struct {
	Category string `json:"category" jsonschema:"required,description=Category name"`
	Year     int    `json:"year,omitempty" jsonschema:"description=Four digit year"`
	TopN     int    `json:"top_n,omitempty"`
}

func (a lookupArgs) Validate() error {
	if a.TopN < 0 {
		return errors.New("top_n must not be negative")
	}
	return nil
}

func newLookupTool(t *testing.T, got *lookupArgs) Tool {
	t.Helper()
	tl, err := NewFunc(Config{Name: "lookup", Description: "Look something up"},
		func(ctx context.Context, args lookupArgs) (*Output, error) {
			*got = args
			return &Output{
				Summary:   "found " + args.Category,
				Artifacts: []json.RawMessage{json.RawMessage(`{"type":"bar"}`)},
			}, nil
		})
	require.NoError(t, err)
	return tl
}

func TestNewFunc_Schema(t *testing.T) {
	var got lookupArgs
	tl := newLookupTool(t, &got)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tl.Schema(), &schema))

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "category")
	assert.Contains(t, props, "year")
	assert.Equal(t, []any{"category"}, schema["required"])
}

func TestNewFunc_ConfigValidation(t *testing.T) {
	fn := func(ctx context.Context, args lookupArgs) (*Output, error) { return nil, nil }

	_, err := NewFunc(Config{Description: "x"}, fn)
	assert.Error(t, err)

	_, err = NewFunc(Config{Name: "x"}, fn)
	assert.Error(t, err)
}

func TestFuncTool_Decode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     lookupArgs
		wantKind ErrorKind
		wantErr  bool
	}{
		{
			name:  "typed input",
			input: `{"category":"Groceries","year":2024}`,
			want:  lookupArgs{Category: "Groceries", Year: 2024},
		},
		{
			name:  "weakly typed number",
			input: `{"category":"Groceries","year":"2023","top_n":5}`,
			want:  lookupArgs{Category: "Groceries", Year: 2023, TopN: 5},
		},
		{
			name:     "missing required",
			input:    `{"year":2024}`,
			wantErr:  true,
			wantKind: KindInvalidInput,
		},
		{
			name:     "null input",
			input:    `null`,
			wantErr:  true,
			wantKind: KindInvalidInput,
		},
		{
			name:     "not an object",
			input:    `[1,2]`,
			wantErr:  true,
			wantKind: KindInvalidInput,
		},
		{
			name:     "validator rejects",
			input:    `{"category":"Rent","top_n":-1}`,
			wantErr:  true,
			wantKind: KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got lookupArgs
			tl := newLookupTool(t, &got)

			out, err := tl.Call(context.Background(), json.RawMessage(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "found "+tt.want.Category, out.Summary)
		})
	}
}

type staticTool struct {
	name string
	out  *Output
	err  error
	fn   func()
}

func (s *staticTool) Name() string        { return s.name }
func (s *staticTool) Description() string { return "static " + s.name }
func (s *staticTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (s *staticTool) Call(ctx context.Context, input json.RawMessage) (*Output, error) {
	if s.fn != nil {
		s.fn()
	}
	return s.out, s.err
}

func TestRegistry_Definitions(t *testing.T) {
	r, err := NewRegistry(&staticTool{name: "b"}, &staticTool{name: "a"})
	require.NoError(t, err)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "b", defs[0].Name)
	assert.Equal(t, "a", defs[1].Name)
	assert.Equal(t, "static a", defs[1].Description)
	assert.Equal(t, []string{"b", "a"}, r.Names())

	_, err = NewRegistry(&staticTool{name: "a"}, &staticTool{name: "a"})
	assert.Error(t, err)
}

func TestRegistry_Run(t *testing.T) {
	boom := errors.New("database is locked")
	r, err := NewRegistry(
		&staticTool{name: "ok", out: &Output{Summary: "fine"}},
		&staticTool{name: "empty"},
		&staticTool{name: "fails", err: boom},
		&staticTool{name: "rejects", err: InvalidInput(errors.New("bad month"))},
		&staticTool{name: "panics", fn: func() { panic("nil map") }},
	)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := r.Run(ctx, "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, "fine", out.Summary)

	out, err = r.Run(ctx, "empty", nil)
	require.NoError(t, err)
	assert.NotNil(t, out)

	_, err = r.Run(ctx, "missing", nil)
	assert.Equal(t, KindUnknownTool, KindOf(err))
	assert.EqualError(t, err, `unknown tool "missing"`)

	_, err = r.Run(ctx, "fails", nil)
	assert.Equal(t, KindExecution, KindOf(err))
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "fails failed: database is locked")

	_, err = r.Run(ctx, "rejects", nil)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.EqualError(t, err, "invalid input for rejects: bad month")

	_, err = r.Run(ctx, "panics", nil)
	assert.Equal(t, KindExecution, KindOf(err))
	assert.Contains(t, err.Error(), "panic: nil map")
}
