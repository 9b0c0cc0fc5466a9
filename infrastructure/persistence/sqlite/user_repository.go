package sqlite

import (
	"context"
	"database/sql"
	"time"

	"relgraph-backend/domain/graph"
	apperrors "relgraph-backend/pkg/errors"

	"go.uber.org/zap"
)

// DefaultUserBalance is credited to every account on first login.
const DefaultUserBalance = 1000.0

// DefaultUserRole is assigned to every account on first login.
const DefaultUserRole = "user"

// UserRepository persists user accounts in the shared database.
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository builds a user repository over an open database handle.
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func scanUser(row rowScanner) (*graph.User, error) {
	var (
		user                 graph.User
		createdAt, updatedAt string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Balance, &user.Role, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &user, nil
}

// GetUser returns the user or (nil, nil) when absent.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*graph.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, email, balance, role, created_at, updated_at FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	return user, nil
}

// GetUserByEmail returns the user or (nil, nil) when absent.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*graph.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, email, balance, role, created_at, updated_at FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user by email", err)
	}
	return user, nil
}

// GetOrCreate returns the existing user or creates one with the starting
// balance and default role. Used on first successful authentication.
func (r *UserRepository) GetOrCreate(ctx context.Context, id, email string) (*graph.User, error) {
	existing, err := r.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	user := &graph.User{
		ID:        id,
		Email:     email,
		Balance:   DefaultUserBalance,
		Role:      DefaultUserRole,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, balance, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Balance, user.Role,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		// A concurrent first login can win the insert race; read it back.
		if isUniqueViolation(err) {
			return r.GetUser(ctx, id)
		}
		return nil, apperrors.NewDatabaseError("create user", err)
	}

	r.logger.Info("created user on first login", zap.String("user_id", id))
	return user, nil
}
