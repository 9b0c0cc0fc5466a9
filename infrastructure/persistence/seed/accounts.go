package seed

import (
	"context"
	"sync"
	"time"

	"relgraph-backend/domain/graph"
)

// Account defaults mirror the persisted store.
const (
	DefaultUserBalance = 1000.0
	DefaultUserRole    = "user"
)

// UserRepository is the in-memory user store used alongside the seed graph.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]graph.User
}

// NewUserRepository creates an empty in-memory user store.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]graph.User)}
}

// GetUser returns the user or (nil, nil) when absent.
func (r *UserRepository) GetUser(_ context.Context, id string) (*graph.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// GetUserByEmail returns the user or (nil, nil) when absent.
func (r *UserRepository) GetUserByEmail(_ context.Context, email string) (*graph.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// GetOrCreate returns the existing user or creates one with the default
// balance and role.
func (r *UserRepository) GetOrCreate(_ context.Context, id, email string) (*graph.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.users[id]; ok {
		return &user, nil
	}
	now := time.Now().UTC()
	user := graph.User{
		ID:        id,
		Email:     email,
		Balance:   DefaultUserBalance,
		Role:      DefaultUserRole,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.users[id] = user
	return &user, nil
}

// RequestRepository is the in-memory node request store used alongside the
// seed graph.
type RequestRepository struct {
	mu       sync.RWMutex
	requests map[string]graph.NodeRequest
	order    []string
}

// NewRequestRepository creates an empty in-memory request store.
func NewRequestRepository() *RequestRepository {
	return &RequestRepository{requests: make(map[string]graph.NodeRequest)}
}

// CreateRequest stores a terminal request record.
func (r *RequestRepository) CreateRequest(_ context.Context, req *graph.NodeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests[req.ID] = *req
	r.order = append(r.order, req.ID)
	return nil
}

// GetRequest returns the request or (nil, nil) when absent.
func (r *RequestRepository) GetRequest(_ context.Context, id string) (*graph.NodeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// ListRequests returns all requests in insertion order.
func (r *RequestRepository) ListRequests(_ context.Context) ([]graph.NodeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]graph.NodeRequest, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.requests[id])
	}
	return out, nil
}
