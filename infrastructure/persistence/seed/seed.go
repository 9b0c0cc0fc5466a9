// Package seed provides a deterministic, in-memory implementation of the
// graph repository contract. It generates reproducible sample data from a
// fixed seed and exists for tests and database-free bootstrap; it must never
// stand in for the persisted store in production.
package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"relgraph-backend/domain/graph"
	apperrors "relgraph-backend/pkg/errors"
)

// DefaultSeed matches the sample data shipped with the original dataset.
const DefaultSeed = 42

// DefaultNodeCount is the number of generated companies.
const DefaultNodeCount = 18

var palette = []string{
	"#667eea", "#764ba2", "#f093fb", "#4f46e5",
	"#22d3ee", "#f472b6", "#10b981", "#f97316",
}

var sectors = []string{"AI", "Automotive", "Consumer", "Enterprise", "Cloud", "Semiconductors"}

var categories = []string{"Tier 1", "Tier 2", "Tier 3"}

// Repository is the deterministic seed-backed graph repository. All state is
// in memory; a mutex makes the CRUD surface safe for concurrent tests.
type Repository struct {
	mu        sync.RWMutex
	nodes     map[string]graph.Node
	nodeOrder []string
	rels      map[string]graph.Relationship
	relOrder  []string
}

// New generates a repository seeded with count companies. The same seed and
// count always produce an identical graph.
func New(seed int64, count int) *Repository {
	rng := rand.New(rand.NewSource(seed))
	repo := &Repository{
		nodes: make(map[string]graph.Node, count),
		rels:  make(map[string]graph.Relationship),
	}

	for i := 0; i < count; i++ {
		sector := sectors[i%len(sectors)]
		id := fmt.Sprintf("node-%d", i+1)
		metadata := map[string]any{
			"sector":    sector,
			"category":  categories[i%len(categories)],
			"marketCap": math.Round((100+rng.Float64()*800)*100) / 100,
			"score":     math.Round((0.1+rng.Float64()*0.9)*1000) / 1000,
		}
		node := graph.Node{
			ID:          id,
			Type:        "company",
			Label:       fmt.Sprintf("Company %d", i+1),
			Description: fmt.Sprintf("Company %d operates in the %s space.", i+1, sector),
			Sector:      sector,
			Color:       palette[i%len(palette)],
			Metadata:    metadata,
		}
		repo.nodes[id] = node
		repo.nodeOrder = append(repo.nodeOrder, id)
	}

	// ring of primary relationships plus a chord to a further neighbor
	primary := 0.35
	secondary := 0.15
	for i := 0; i < count; i++ {
		source := repo.nodeOrder[i]
		target := repo.nodeOrder[(i+1)%count]
		repo.addRelationship(source, target, primary)

		chord := repo.nodeOrder[(i+count/3)%count]
		if chord != target {
			repo.addRelationship(source, chord, secondary)
		}
	}

	return repo
}

// NewDefault generates the standard sample graph.
func NewDefault() *Repository {
	return New(DefaultSeed, DefaultNodeCount)
}

func (r *Repository) addRelationship(source, target string, strength float64) {
	id := graph.DeriveRelationshipID(source, target, graph.RelationTypeDefault)
	if _, exists := r.rels[id]; exists {
		return
	}
	s := strength
	r.rels[id] = graph.Relationship{
		ID:       id,
		SourceID: source,
		TargetID: target,
		Type:     graph.RelationTypeDefault,
		Strength: &s,
	}
	r.relOrder = append(r.relOrder, id)
}

// GetSnapshot returns the full graph state. One lock covers both reads so
// the node and relationship sets describe the same instant.
func (r *Repository) GetSnapshot(_ context.Context) (*graph.GraphSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &graph.GraphSnapshot{
		Nodes:         r.listNodesLocked(),
		Relationships: r.listRelationshipsLocked(),
	}, nil
}

// ListNodes returns all nodes in generation order.
func (r *Repository) ListNodes(_ context.Context) ([]graph.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listNodesLocked(), nil
}

func (r *Repository) listNodesLocked() []graph.Node {
	nodes := make([]graph.Node, 0, len(r.nodeOrder))
	for _, id := range r.nodeOrder {
		nodes = append(nodes, copyNode(r.nodes[id]))
	}
	return nodes
}

// ListRelationships returns all relationships in generation order.
func (r *Repository) ListRelationships(_ context.Context) ([]graph.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listRelationshipsLocked(), nil
}

func (r *Repository) listRelationshipsLocked() []graph.Relationship {
	rels := make([]graph.Relationship, 0, len(r.relOrder))
	for _, id := range r.relOrder {
		rels = append(rels, r.rels[id])
	}
	return rels
}

// GetNode returns the node or (nil, nil) when absent.
func (r *Repository) GetNode(_ context.Context, id string) (*graph.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[id]
	if !ok {
		return nil, nil
	}
	out := copyNode(node)
	return &out, nil
}

// GetRelationship returns the relationship or (nil, nil) when absent.
func (r *Repository) GetRelationship(_ context.Context, id string) (*graph.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rel, ok := r.rels[id]
	if !ok {
		return nil, nil
	}
	return &rel, nil
}

// CreateNode inserts the node, rejecting duplicate ids.
func (r *Repository) CreateNode(_ context.Context, node graph.Node) (*graph.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node.ID]; exists {
		return nil, apperrors.NewConflictError(fmt.Sprintf("node with ID '%s' already exists", node.ID))
	}
	stored := copyNode(node)
	stored.Position = nil
	if stored.Metadata == nil {
		stored.Metadata = map[string]any{}
	}
	r.nodes[node.ID] = stored
	r.nodeOrder = append(r.nodeOrder, node.ID)

	out := copyNode(stored)
	return &out, nil
}

// UpdateNode applies only the fields present in the patch.
func (r *Repository) UpdateNode(_ context.Context, id string, patch graph.NodePatch) (*graph.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return nil, nil
	}

	for _, f := range graph.Fields() {
		if v, present := f.Patch(&patch); present {
			f.Apply(&node, v, true)
		}
	}
	if patch.Metadata != nil {
		node.Metadata = copyMetadata(patch.Metadata)
	}
	r.nodes[id] = node

	out := copyNode(node)
	return &out, nil
}

// DeleteNode removes the node and every relationship referencing it.
func (r *Repository) DeleteNode(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return false, nil
	}
	delete(r.nodes, id)
	r.nodeOrder = removeID(r.nodeOrder, id)

	kept := r.relOrder[:0]
	for _, relID := range r.relOrder {
		rel := r.rels[relID]
		if rel.SourceID == id || rel.TargetID == id {
			delete(r.rels, relID)
			continue
		}
		kept = append(kept, relID)
	}
	r.relOrder = kept
	return true, nil
}

// CreateRelationship verifies endpoints and rejects duplicate derived ids.
func (r *Repository) CreateRelationship(_ context.Context, rel graph.Relationship) (*graph.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[rel.SourceID]; !ok {
		return nil, apperrors.NewNotFoundError("source node not found: " + rel.SourceID)
	}
	if _, ok := r.nodes[rel.TargetID]; !ok {
		return nil, apperrors.NewNotFoundError("target node not found: " + rel.TargetID)
	}
	if _, exists := r.rels[rel.ID]; exists {
		return nil, apperrors.NewConflictError("relationship already exists with ID: " + rel.ID)
	}

	if rel.Type == "" {
		rel.Type = graph.RelationTypeDefault
	}
	r.rels[rel.ID] = rel
	r.relOrder = append(r.relOrder, rel.ID)

	out := rel
	return &out, nil
}

// UpdateRelationship applies only the fields present in the patch.
func (r *Repository) UpdateRelationship(_ context.Context, id string, patch graph.RelationshipPatch) (*graph.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.rels[id]
	if !ok {
		return nil, nil
	}
	if patch.Strength != nil {
		s := *patch.Strength
		rel.Strength = &s
	}
	if patch.CreatedAt != nil {
		at, err := time.Parse(time.RFC3339, *patch.CreatedAt)
		if err != nil {
			return nil, apperrors.NewValidationError("created_datetime must be RFC3339: " + *patch.CreatedAt)
		}
		rel.CreatedAt = &at
	}
	r.rels[id] = rel

	out := rel
	return &out, nil
}

// DeleteRelationship removes the relationship.
func (r *Repository) DeleteRelationship(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rels[id]; !ok {
		return false, nil
	}
	delete(r.rels, id)
	r.relOrder = removeID(r.relOrder, id)
	return true, nil
}

func copyNode(node graph.Node) graph.Node {
	out := node
	out.Metadata = copyMetadata(node.Metadata)
	return out
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
