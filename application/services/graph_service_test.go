package services

import (
	"context"
	"testing"

	"relgraph-backend/domain/graph"
	"relgraph-backend/infrastructure/persistence/seed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGraphFixture(t *testing.T, multiType bool) (*GraphService, *seed.Repository) {
	t.Helper()
	repo := seed.New(3, 6)
	return NewGraphService(repo, "company", multiType, zap.NewNop()), repo
}

func TestGetSnapshot_FiltersForeignTypes(t *testing.T) {
	svc, repo := newGraphFixture(t, false)
	ctx := context.Background()

	_, err := repo.CreateNode(ctx, graph.Node{ID: "alice", Type: "person", Label: "Alice"})
	require.NoError(t, err)
	_, err = repo.CreateRelationship(ctx, graph.Relationship{
		ID:       graph.DeriveRelationshipID("node-1", "alice", "advises"),
		SourceID: "node-1",
		TargetID: "alice",
		Type:     "advises",
	})
	require.NoError(t, err)

	snapshot, err := svc.GetSnapshot(ctx)
	require.NoError(t, err)

	for _, node := range snapshot.Nodes {
		assert.Equal(t, "company", node.Type)
	}
	for _, rel := range snapshot.Relationships {
		assert.NotEqual(t, "alice", rel.SourceID)
		assert.NotEqual(t, "alice", rel.TargetID)
	}
}

func TestGetSnapshot_MultiTypeKeepsEverything(t *testing.T) {
	svc, repo := newGraphFixture(t, true)
	ctx := context.Background()

	_, err := repo.CreateNode(ctx, graph.Node{ID: "alice", Type: "person", Label: "Alice"})
	require.NoError(t, err)

	snapshot, err := svc.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Nodes, 7)
}

func TestGetNodeDetail(t *testing.T) {
	svc, _ := newGraphFixture(t, false)
	ctx := context.Background()

	t.Run("present", func(t *testing.T) {
		detail, err := svc.GetNodeDetail(ctx, "node-1")
		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.Equal(t, "node-1", detail.ID)
		assert.Equal(t, "company", detail.Data["type"])
		assert.Equal(t, "Company 1", detail.Data["label"])
	})

	t.Run("absent", func(t *testing.T) {
		detail, err := svc.GetNodeDetail(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, detail)
	})
}

func TestSearchNodes(t *testing.T) {
	repo := seed.New(3, 0)
	svc := NewGraphService(repo, "company", false, zap.NewNop())
	ctx := context.Background()

	mk := func(id, label, sector string, score float64) {
		_, err := repo.CreateNode(ctx, graph.Node{
			ID:       id,
			Type:     "company",
			Label:    label,
			Sector:   sector,
			Metadata: map[string]any{"score": score},
		})
		require.NoError(t, err)
	}
	mk("a", "Quantum Dynamics", "AI", 0.2)
	mk("b", "Quantum Leap", "Cloud", 0.9)
	mk("c", "Solid State", "Semiconductors", 0.5)
	mk("d", "Quantum Forge", "AI", 0.9)

	t.Run("blank query yields empty result", func(t *testing.T) {
		results, err := svc.SearchNodes(ctx, "   ", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("case-insensitive label match ranked by score", func(t *testing.T) {
		results, err := svc.SearchNodes(ctx, "QUANTUM", 5)
		require.NoError(t, err)
		require.Len(t, results, 3)

		// ties keep insertion order: b before d at 0.9, then a
		assert.Equal(t, "b", results[0].ID)
		assert.Equal(t, "d", results[1].ID)
		assert.Equal(t, "a", results[2].ID)
	})

	t.Run("sector matches too", func(t *testing.T) {
		results, err := svc.SearchNodes(ctx, "semicon", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "c", results[0].ID)
	})

	t.Run("limit truncates after ranking", func(t *testing.T) {
		results, err := svc.SearchNodes(ctx, "quantum", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "b", results[0].ID)
		assert.Equal(t, "d", results[1].ID)
	})

	t.Run("no match yields empty slice", func(t *testing.T) {
		results, err := svc.SearchNodes(ctx, "zzz", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
