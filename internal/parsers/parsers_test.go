package parsers

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/typegraph-go/internal/schema"
)

const usersJSON = `{
  "types": [
    {"type": "object", "title": "Query", "properties": {"users": 1}},
    {"type": "object", "title": "Users", "properties": {"get": 2}},
    {
      "type": "function",
      "input": 3,
      "output": 5,
      "materializer": 1,
      "rate_weight": 2,
      "injections": {"children": {"tenant": {"injection": {"source": "context", "data": "tenant_id"}}}}
    },
    {"type": "object", "properties": {"zeta": 4, "alpha": 4, "tenant": 6}, "required": ["zeta"]},
    {"type": "integer", "minimum": 9007199254740993, "multiple_of": 3},
    {"type": "list", "items": 6, "max_items": 10},
    {"type": "string", "format": "uuid"}
  ]
}`

const usersYAML = `
types:
  - type: object
    title: Query
    properties:
      users: 1
  - type: object
    title: Users
    properties:
      get: 2
  - type: function
    input: 3
    output: 5
    materializer: 1
    rate_weight: 2
    injections:
      children:
        tenant:
          injection:
            source: context
            data: tenant_id
  - type: object
    properties:
      zeta: 4
      alpha: 4
      tenant: 6
    required: [zeta]
  - type: integer
    minimum: 9007199254740993
    multiple_of: 3
  - type: list
    items: 6
    max_items: 10
  - type: string
    format: uuid
`

func TestJSONParser(t *testing.T) {
	t.Parallel()

	parser := NewJSONParser()
	assert.Equal(t, "json", parser.Format())

	t.Run("Document", func(t *testing.T) {
		t.Parallel()
		s, err := parser.Parse("users.json", []byte(usersJSON))
		require.NoError(t, err)
		require.Equal(t, 7, s.Len())

		input, ok := s.Types[3].(*schema.Object)
		require.True(t, ok)
		assert.Equal(t, []schema.Property{
			{Name: "zeta", Index: 4},
			{Name: "alpha", Index: 4},
			{Name: "tenant", Index: 6},
		}, input.Properties)
		assert.Equal(t, []string{"zeta"}, input.Required)

		integer, ok := s.Types[4].(*schema.Integer)
		require.True(t, ok)
		require.NotNil(t, integer.Minimum)
		assert.Equal(t, int64(9007199254740993), *integer.Minimum)
		assert.Equal(t, int64(3), *integer.MultipleOf)
		assert.Nil(t, integer.Maximum)

		fn, ok := s.Types[2].(*schema.Function)
		require.True(t, ok)
		assert.Equal(t, uint32(1), fn.Materializer)
		assert.Equal(t, uint32(2), *fn.RateWeight)
		tenant := fn.Injections.Child("tenant")
		require.True(t, tenant.IsLeaf())
		assert.Equal(t, schema.InjectContext, tenant.Injection.Source)
		assert.Equal(t, "tenant_id", tenant.Injection.Data)
		assert.Nil(t, fn.Outjections)
	})

	t.Run("EnumKeepsNumbers", func(t *testing.T) {
		t.Parallel()
		s, err := parser.Parse("enum.json", []byte(`{"types": [
			{"type": "object", "properties": {"n": 1}},
			{"type": "integer", "enum": [1, 2]}
		]}`))
		require.NoError(t, err)
		assert.Equal(t, []any{json.Number("1"), json.Number("2")}, s.Types[1].NodeBase().Enum)
		assert.Nil(t, s.Types[0].NodeBase().Enum)
	})

	t.Run("EmptyObject", func(t *testing.T) {
		t.Parallel()
		s, err := parser.Parse("empty.json", []byte(`{"types": [{"type": "object"}]}`))
		require.NoError(t, err)
		obj := s.Types[0].(*schema.Object)
		assert.NotNil(t, obj.Properties)
		assert.Empty(t, obj.Properties)
	})

	t.Run("Errors", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name    string
			content string
			want    error
		}{
			{"UnknownType", `{"types": [{"type": "tuple"}]}`, schema.ErrMalformed},
			{"MissingType", `{"types": [{"title": "x"}]}`, schema.ErrMalformed},
			{"MissingItem", `{"types": [{"type": "optional"}]}`, schema.ErrMalformed},
			{"FractionalIntegerBound", `{"types": [{"type": "integer", "minimum": 1.5}]}`, schema.ErrMalformed},
			{"DanglingEdge", `{"types": [{"type": "list", "items": 4}]}`, schema.ErrIndexOutOfRange},
			{"InputNotObject", `{"types": [{"type": "function", "input": 1, "output": 1}, {"type": "boolean"}]}`, schema.ErrMalformed},
			{"PropertyNotIndex", `{"types": [{"type": "object", "properties": {"a": "b"}}]}`, nil},
			{"Syntax", `{"types": [`, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				_, err := parser.Parse("bad.json", []byte(tt.content))
				require.Error(t, err)
				if tt.want != nil {
					assert.ErrorIs(t, err, tt.want)
				}
			})
		}
	})
}

func TestYAMLParser(t *testing.T) {
	t.Parallel()

	parser := NewYAMLParser()
	assert.Equal(t, "yaml", parser.Format())

	t.Run("MatchesJSON", func(t *testing.T) {
		t.Parallel()
		fromYAML, err := parser.Parse("users.yaml", []byte(usersYAML))
		require.NoError(t, err)
		fromJSON, err := NewJSONParser().Parse("users.json", []byte(usersJSON))
		require.NoError(t, err)
		assert.Equal(t, fromJSON, fromYAML)
	})

	t.Run("Enum", func(t *testing.T) {
		t.Parallel()
		s, err := parser.Parse("enum.yaml", []byte("types:\n  - type: string\n    enum: [a, b]\n"))
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, s.Types[0].NodeBase().Enum)
	})

	t.Run("Errors", func(t *testing.T) {
		t.Parallel()
		_, err := parser.Parse("bad.yaml", []byte("types:\n  - type: integer\n    minimum: low\n"))
		assert.Error(t, err)

		_, err = parser.Parse("bad.yaml", []byte("types:\n  - type: object\n    properties: [a]\n"))
		assert.Error(t, err)

		_, err = parser.Parse("bad.yaml", []byte("types:\n  - type: either\n"))
		assert.ErrorIs(t, err, schema.ErrMalformed)
	})
}

func TestForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		format string
	}{
		{"schema.json", "json"},
		{"dir/schema.JSON", "json"},
		{"schema.yaml", "yaml"},
		{"schema.yml", "yaml"},
	}
	for _, tt := range tests {
		p, err := ForPath(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.format, p.Format(), tt.path)
	}

	_, err := ForPath("schema.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Len(t, Formats(), 3)
}
