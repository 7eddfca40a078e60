package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/typegraph-go/internal/typegraph"
)

func TestLabels(t *testing.T) {
	t.Parallel()

	labels := Labels()
	assert.Len(t, labels, 12)

	seen := make(map[NodeLabel]bool)
	for _, l := range labels {
		assert.False(t, seen[l], "duplicate label %s", l)
		seen[l] = true
	}
	assert.True(t, seen[NodeNamespace])
	assert.True(t, seen[NodeEither])
}

func TestGenerateRelID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		relType  RelType
		source   string
		position int
		expected string
	}{
		{"Property", RelProperty, "3#0", 2, "property:3#0:2"},
		{"Input", RelInput, "1#0", 0, "input:1#0:0"},
		{"Output", RelOutput, "1#0", 0, "output:1#0:0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, GenerateRelID(tt.relType, tt.source, tt.position))
		})
	}
}

func TestGraphNode_Key(t *testing.T) {
	t.Parallel()

	n := &GraphNode{ID: "12#3"}
	key, err := n.Key()
	require.NoError(t, err)
	assert.Equal(t, typegraph.TypeKey{Index: 12, Ordinal: 3}, key)

	_, err = (&GraphNode{ID: "object"}).Key()
	assert.Error(t, err)
}

func TestGraphRelationship_Name(t *testing.T) {
	t.Parallel()

	r := &GraphRelationship{Properties: map[string]any{"name": "id"}}
	assert.Equal(t, "id", r.Name())
	assert.Equal(t, "", (&GraphRelationship{}).Name())
}
