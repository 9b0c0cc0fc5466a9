package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"relgraph-backend/domain/graph"
	apperrors "relgraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "graph.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testNode(id string) graph.Node {
	return graph.Node{
		ID:          id,
		Type:        "company",
		Label:       "Node " + id,
		Description: "Description for " + id,
		Sector:      "AI",
		Color:       "#667eea",
		Metadata:    map[string]any{"score": 0.5, "category": "Tier 1"},
	}
}

func TestCreateNode_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	node := testNode("n1")
	created, err := repo.CreateNode(ctx, node)
	require.NoError(t, err)
	require.NotNil(t, created)

	loaded, err := repo.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, node.ID, loaded.ID)
	assert.Equal(t, node.Type, loaded.Type)
	assert.Equal(t, node.Label, loaded.Label)
	assert.Equal(t, node.Description, loaded.Description)
	assert.Equal(t, node.Sector, loaded.Sector)
	assert.Equal(t, node.Color, loaded.Color)
	assert.Equal(t, map[string]any{"score": 0.5, "category": "Tier 1"}, loaded.Metadata)
	assert.Nil(t, loaded.Position, "position must always be absent on load")
}

func TestCreateNode_DuplicateID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateNode(ctx, testNode("n1"))
	require.NoError(t, err)

	_, err = repo.CreateNode(ctx, testNode("n1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Contains(t, err.Error(), "already exists")
}

func TestGetNode_Absent(t *testing.T) {
	repo := newTestRepository(t)

	node, err := repo.GetNode(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestUpdateNode_PartialUpdate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateNode(ctx, testNode("n1"))
	require.NoError(t, err)

	label := "Renamed"
	updated, err := repo.UpdateNode(ctx, "n1", graph.NodePatch{Label: &label})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "Renamed", updated.Label)
	// everything else untouched
	assert.Equal(t, "company", updated.Type)
	assert.Equal(t, "Description for n1", updated.Description)
	assert.Equal(t, "AI", updated.Sector)
	assert.Equal(t, "#667eea", updated.Color)
	assert.Equal(t, map[string]any{"score": 0.5, "category": "Tier 1"}, updated.Metadata)
}

func TestUpdateNode_Metadata(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateNode(ctx, testNode("n1"))
	require.NoError(t, err)

	updated, err := repo.UpdateNode(ctx, "n1", graph.NodePatch{Metadata: map[string]any{"score": 1.0}})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, map[string]any{"score": 1.0}, updated.Metadata)
	assert.Equal(t, "Node n1", updated.Label)
}

func TestUpdateNode_UnknownID(t *testing.T) {
	repo := newTestRepository(t)

	label := "X"
	updated, err := repo.UpdateNode(context.Background(), "missing", graph.NodePatch{Label: &label})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestDeleteNode_CascadesRelationships(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.CreateNode(ctx, testNode(id))
		require.NoError(t, err)
	}
	relAB := mustCreateRelationship(t, repo, "a", "b", "owns")
	relCA := mustCreateRelationship(t, repo, "c", "a", "partners_with")
	relBC := mustCreateRelationship(t, repo, "b", "c", "owns")

	deleted, err := repo.DeleteNode(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	node, err := repo.GetNode(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, node)

	for _, id := range []string{relAB.ID, relCA.ID} {
		rel, err := repo.GetRelationship(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, rel, "relationship %s should be cascaded away", id)
	}

	// the unrelated relationship survives
	rel, err := repo.GetRelationship(ctx, relBC.ID)
	require.NoError(t, err)
	assert.NotNil(t, rel)
}

func TestDeleteNode_Absent(t *testing.T) {
	repo := newTestRepository(t)

	deleted, err := repo.DeleteNode(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func mustCreateRelationship(t *testing.T, repo *Repository, source, target, relType string) *graph.Relationship {
	t.Helper()
	strength := 0.35
	now := time.Now().UTC()
	rel, err := repo.CreateRelationship(context.Background(), graph.Relationship{
		ID:        graph.DeriveRelationshipID(source, target, relType),
		SourceID:  source,
		TargetID:  target,
		Type:      relType,
		Strength:  &strength,
		CreatedAt: &now,
	})
	require.NoError(t, err)
	return rel
}

func TestCreateRelationship_DerivedIDAndDuplicate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"A", "B"} {
		_, err := repo.CreateNode(ctx, testNode(id))
		require.NoError(t, err)
	}

	rel := mustCreateRelationship(t, repo, "A", "B", "owns")
	assert.Equal(t, "A_B_owns", rel.ID)

	// second create with the same derived id fails and leaves the row intact
	strength := 0.9
	_, err := repo.CreateRelationship(ctx, graph.Relationship{
		ID:       graph.DeriveRelationshipID("A", "B", "owns"),
		SourceID: "A",
		TargetID: "B",
		Type:     "owns",
		Strength: &strength,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	existing, err := repo.GetRelationship(ctx, "A_B_owns")
	require.NoError(t, err)
	require.NotNil(t, existing)
	require.NotNil(t, existing.Strength)
	assert.Equal(t, 0.35, *existing.Strength, "existing row must be unmutated")

	rels, err := repo.ListRelationships(ctx)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestCreateRelationship_MissingEndpoint(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateNode(ctx, testNode("A"))
	require.NoError(t, err)

	_, err = repo.CreateRelationship(ctx, graph.Relationship{
		ID:       graph.DeriveRelationshipID("A", "ghost", "owns"),
		SourceID: "A",
		TargetID: "ghost",
		Type:     "owns",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "target node not found: ghost")
}

func TestUpdateRelationship_StrengthOnly(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"A", "B"} {
		_, err := repo.CreateNode(ctx, testNode(id))
		require.NoError(t, err)
	}
	rel := mustCreateRelationship(t, repo, "A", "B", "owns")

	strength := 0.8
	updated, err := repo.UpdateRelationship(ctx, rel.ID, graph.RelationshipPatch{Strength: &strength})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, 0.8, *updated.Strength)
	assert.Equal(t, "A", updated.SourceID)
	assert.Equal(t, "owns", updated.Type)
	assert.Equal(t, rel.ID, updated.ID)
}

func TestUpdateRelationship_UnknownID(t *testing.T) {
	repo := newTestRepository(t)

	strength := 0.1
	updated, err := repo.UpdateRelationship(context.Background(), "missing", graph.RelationshipPatch{Strength: &strength})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestLegacyRelationshipTypeDefaults(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"A", "B"} {
		_, err := repo.CreateNode(ctx, testNode(id))
		require.NoError(t, err)
	}

	// simulate a legacy row written before the type column carried data
	_, err := repo.DB().Exec(`INSERT INTO relationships (id, source_id, target_id) VALUES ('legacy', 'A', 'B')`)
	require.NoError(t, err)

	rel, err := repo.GetRelationship(ctx, "legacy")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, graph.RelationTypeDefault, rel.Type)
}

func TestGetSnapshot(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"A", "B"} {
		_, err := repo.CreateNode(ctx, testNode(id))
		require.NoError(t, err)
	}
	mustCreateRelationship(t, repo, "A", "B", "owns")

	snapshot, err := repo.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Nodes, 2)
	assert.Len(t, snapshot.Relationships, 1)
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	repo := newTestRepository(t)
	users := NewUserRepository(repo.DB(), zap.NewNop())
	ctx := context.Background()

	user, err := users.GetOrCreate(ctx, "u1", "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserBalance, user.Balance)
	assert.Equal(t, DefaultUserRole, user.Role)

	// second call returns the same record, no reset
	again, err := users.GetOrCreate(ctx, "u1", "changed@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", again.Email)

	byEmail, err := users.GetUserByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u1", byEmail.ID)
}

func TestRequestRepository_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	requests := NewRequestRepository(repo.DB())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	req := &graph.NodeRequest{
		ID:          "req-1",
		RequestorID: "u1",
		Status:      graph.RequestApproved,
		NodeID:      "aapl",
		NodeType:    "company",
		Label:       "Apple Inc.",
		Description: "Consumer electronics",
		Sector:      "Consumer",
		Metadata:    map[string]any{"score": 1.0},
		ApproverID:  "system",
		ApprovedAt:  &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, requests.CreateRequest(ctx, req))

	loaded, err := requests.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, graph.RequestApproved, loaded.Status)
	assert.Equal(t, "u1", loaded.RequestorID)
	assert.Equal(t, "system", loaded.ApproverID)
	require.NotNil(t, loaded.ApprovedAt)
	assert.True(t, loaded.ApprovedAt.Equal(now))
	assert.Empty(t, loaded.RejectionReason)

	all, err := requests.ListRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRequestRepository_AbsentRequest(t *testing.T) {
	repo := newTestRepository(t)
	requests := NewRequestRepository(repo.DB())

	req, err := requests.GetRequest(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestGetSnapshot_ConsistentUnderConcurrentWrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateNode(ctx, testNode("hub"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			if _, err := repo.CreateNode(ctx, testNode("spoke")); err != nil {
				continue
			}
			rel := graph.Relationship{
				ID:       graph.DeriveRelationshipID("hub", "spoke", graph.RelationTypeDefault),
				SourceID: "hub",
				TargetID: "spoke",
				Type:     graph.RelationTypeDefault,
			}
			_, _ = repo.CreateRelationship(ctx, rel)
			_, _ = repo.DeleteNode(ctx, "spoke")
		}
	}()

	for i := 0; i < 50; i++ {
		snapshot, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)

		ids := make(map[string]bool, len(snapshot.Nodes))
		for _, node := range snapshot.Nodes {
			ids[node.ID] = true
		}
		for _, rel := range snapshot.Relationships {
			assert.True(t, ids[rel.SourceID], "snapshot pairs relationship %s with missing source", rel.ID)
			assert.True(t, ids[rel.TargetID], "snapshot pairs relationship %s with missing target", rel.ID)
		}
	}
	<-done
}
