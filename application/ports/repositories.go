// Package ports defines the repository contracts the application layer
// depends on. Two graph implementations exist: the SQLite-backed store and a
// deterministic seed generator used for tests and bootstrap.
package ports

import (
	"context"

	"relgraph-backend/domain/graph"
)

// GraphRepository persists nodes and relationships. Point lookups return
// (nil, nil) when the entity is absent; creates surface the store's
// duplicate-key rejection as a conflict error, never as an upsert.
type GraphRepository interface {
	// GetSnapshot returns the full, unfiltered graph state.
	GetSnapshot(ctx context.Context) (*graph.GraphSnapshot, error)

	ListNodes(ctx context.Context) ([]graph.Node, error)
	ListRelationships(ctx context.Context) ([]graph.Relationship, error)

	GetNode(ctx context.Context, id string) (*graph.Node, error)
	GetRelationship(ctx context.Context, id string) (*graph.Relationship, error)

	CreateNode(ctx context.Context, node graph.Node) (*graph.Node, error)
	// UpdateNode applies only the fields present in the patch and returns the
	// updated node, or (nil, nil) when the id is unknown.
	UpdateNode(ctx context.Context, id string, patch graph.NodePatch) (*graph.Node, error)
	// DeleteNode removes the node and every relationship referencing it as
	// source or target, atomically. Returns false when the id is unknown.
	DeleteNode(ctx context.Context, id string) (bool, error)

	CreateRelationship(ctx context.Context, rel graph.Relationship) (*graph.Relationship, error)
	UpdateRelationship(ctx context.Context, id string, patch graph.RelationshipPatch) (*graph.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) (bool, error)
}

// UserRepository persists user accounts. Users are created lazily on first
// successful authentication and never deleted.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*graph.User, error)
	GetUserByEmail(ctx context.Context, email string) (*graph.User, error)
	// GetOrCreate returns the existing user or creates one with the default
	// starting balance and role.
	GetOrCreate(ctx context.Context, id, email string) (*graph.User, error)
}

// RequestRepository persists node requests and their terminal outcomes.
type RequestRepository interface {
	CreateRequest(ctx context.Context, req *graph.NodeRequest) error
	GetRequest(ctx context.Context, id string) (*graph.NodeRequest, error)
	ListRequests(ctx context.Context) ([]graph.NodeRequest, error)
}
