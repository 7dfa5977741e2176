package community

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/philograph/internal/core/model"
)

func entities(ids ...string) []model.Entity {
	out := make([]model.Entity, len(ids))
	for i, id := range ids {
		out[i] = model.Entity{ID: id, Name: "entity-" + id}
	}
	return out
}

func rel(s, o string) model.Relationship {
	return model.Relationship{SubjectID: s, Relation: model.RelationInfluences, ObjectID: o}
}

func memberIDs(c []model.Entity) []string {
	ids := make([]string, len(c))
	for i, e := range c {
		ids[i] = e.ID
	}
	return ids
}

func TestLPA_DisconnectedComponents(t *testing.T) {
	// Graph: [1-2-3-1] (Triangle A) ... [4-5-6-4] (Triangle B)
	relationships := []model.Relationship{
		rel("1", "2"), rel("2", "3"), rel("3", "1"),
		rel("4", "5"), rel("5", "6"), rel("6", "4"),
	}

	communities := NewLabelPropagationDetector().Detect(entities("1", "2", "3", "4", "5", "6"), relationships)

	require.Len(t, communities, 2)
	assert.Equal(t, []string{"1", "2", "3"}, memberIDs(communities[0]))
	assert.Equal(t, []string{"4", "5", "6"}, memberIDs(communities[1]))
}

func TestLPA_BridgeNode(t *testing.T) {
	// Two triangles connected by 3-4. Intra-cluster ties outweigh the bridge.
	relationships := []model.Relationship{
		rel("1", "2"), rel("2", "3"), rel("3", "1"),
		rel("3", "4"),
		rel("4", "5"), rel("5", "6"), rel("6", "4"),
	}

	communities := NewLabelPropagationDetector().Detect(entities("1", "2", "3", "4", "5", "6"), relationships)

	assert.Len(t, communities, 2)
}

func TestLPA_LargeClique(t *testing.T) {
	nodes := entities("1", "2", "3", "4", "5")
	var relationships []model.Relationship
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			relationships = append(relationships, rel(nodes[i].ID, nodes[j].ID))
		}
	}

	communities := NewLabelPropagationDetector().Detect(nodes, relationships)

	require.Len(t, communities, 1)
	assert.Len(t, communities[0], 5)
}

func TestLPA_SingletonsAndUnknownEndpoints(t *testing.T) {
	relationships := []model.Relationship{
		rel("a", "b"),
		rel("c", "missing"),
		rel("c", "c"),
	}

	communities := NewLabelPropagationDetector().Detect(entities("a", "b", "c"), relationships)

	require.Len(t, communities, 1)
	assert.Equal(t, []string{"a", "b"}, memberIDs(communities[0]))
}

func TestLPA_Empty(t *testing.T) {
	assert.Equal(t, [][]model.Entity{}, NewLabelPropagationDetector().Detect(nil, nil))
}
