// Package sqlite implements the repository contracts over a SQLite database
// using the CGO-free modernc driver. Every operation runs inside one
// transaction; the deferred rollback guarantees the session is released on
// every exit path.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"relgraph-backend/domain/graph"
	apperrors "relgraph-backend/pkg/errors"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Repository is the store-backed graph repository.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path, runs migrations and the
// legacy-column shim, and returns the graph repository.
func Open(path string, logger *zap.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperrors.NewDatabaseError("open", err)
	}

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// DB exposes the underlying handle so the user and request repositories can
// share one database file.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the schema. The nodes table DDL is generated from the
// schema registry so a new declared field becomes a column without touching
// this package.
func (r *Repository) migrate() error {
	cols := make([]string, 0, len(graph.Fields())+1)
	for _, f := range graph.Fields() {
		col := f.Name + " " + string(f.Storage)
		if f.Name == "id" {
			col += " PRIMARY KEY"
		} else if !f.Nullable {
			col += " NOT NULL"
			if f.HasDefault {
				col += fmt.Sprintf(" DEFAULT '%s'", f.Default)
			}
		}
		cols = append(cols, col)
	}
	cols = append(cols, "metadata_json TEXT NOT NULL DEFAULT '{}'")

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS nodes (
		%s
	);

	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL REFERENCES nodes(id),
		target_id TEXT NOT NULL REFERENCES nodes(id),
		type TEXT,
		strength REAL,
		created_datetime TEXT
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		balance REAL NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_requests (
		id TEXT PRIMARY KEY,
		requestor_id TEXT,
		status TEXT NOT NULL,
		node_id TEXT NOT NULL,
		node_type TEXT NOT NULL,
		label TEXT NOT NULL,
		description TEXT NOT NULL,
		sector TEXT,
		color TEXT,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		approver_id TEXT,
		approved_at TEXT,
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_node_requests_status ON node_requests(status);
	`, strings.Join(cols, ",\n\t\t"))

	if _, err := r.db.Exec(schema); err != nil {
		return apperrors.NewDatabaseError("migrate", err)
	}

	for _, f := range graph.IndexedFields() {
		if f.Name == "id" {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_nodes_%s ON nodes(%s)", f.Name, f.Name)
		if _, err := r.db.Exec(stmt); err != nil {
			return apperrors.NewDatabaseError("migrate", err)
		}
	}

	return r.shimLegacyColumns()
}

// shimLegacyColumns backfills relationship columns missing from deployments
// that predate relation types and timestamps. Not a migration system, just
// enough to make old databases readable.
func (r *Repository) shimLegacyColumns() error {
	existing := make(map[string]bool)
	rows, err := r.db.Query(`PRAGMA table_info(relationships)`)
	if err != nil {
		return apperrors.NewDatabaseError("table_info", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return apperrors.NewDatabaseError("table_info", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewDatabaseError("table_info", err)
	}

	if !existing["type"] {
		r.logger.Info("adding missing relationships.type column")
		if _, err := r.db.Exec(`ALTER TABLE relationships ADD COLUMN type TEXT`); err != nil {
			return apperrors.NewDatabaseError("shim", err)
		}
	}
	if !existing["created_datetime"] {
		r.logger.Info("adding missing relationships.created_datetime column")
		if _, err := r.db.Exec(`ALTER TABLE relationships ADD COLUMN created_datetime TEXT`); err != nil {
			return apperrors.NewDatabaseError("shim", err)
		}
	}
	if _, err := r.db.Exec(`UPDATE relationships SET type = ? WHERE type IS NULL OR type = ''`, graph.RelationTypeDefault); err != nil {
		return apperrors.NewDatabaseError("shim", err)
	}
	return nil
}

// withTx runs fn inside one transaction. The deferred rollback is a no-op
// after a successful commit.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseError("commit", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nodeColumns returns the SELECT/INSERT column list, registry-driven.
func nodeColumns() string {
	names := make([]string, 0, len(graph.Fields())+1)
	for _, f := range graph.Fields() {
		names = append(names, f.Name)
	}
	names = append(names, "metadata_json")
	return strings.Join(names, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanNode reads one nodes row into a domain Node via the registry accessors.
// Position is never stored, so it is always absent on load.
func scanNode(row rowScanner) (*graph.Node, error) {
	fields := graph.Fields()
	vals := make([]sql.NullString, len(fields))
	dests := make([]any, 0, len(fields)+1)
	for i := range vals {
		dests = append(dests, &vals[i])
	}
	var metadataJSON []byte
	dests = append(dests, &metadataJSON)

	if err := row.Scan(dests...); err != nil {
		return nil, err
	}

	node := &graph.Node{Metadata: map[string]any{}}
	for i, f := range fields {
		f.Apply(node, vals[i].String, vals[i].Valid)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &node.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for node %s: %w", node.ID, err)
		}
	}
	return node, nil
}

func scanRelationship(row rowScanner) (*graph.Relationship, error) {
	var (
		id, sourceID, targetID string
		relType                sql.NullString
		strength               sql.NullFloat64
		createdAt              sql.NullString
	)
	if err := row.Scan(&id, &sourceID, &targetID, &relType, &strength, &createdAt); err != nil {
		return nil, err
	}

	rel := &graph.Relationship{
		ID:       id,
		SourceID: sourceID,
		TargetID: targetID,
		Type:     graph.RelationTypeDefault,
	}
	if relType.Valid && relType.String != "" {
		rel.Type = relType.String
	}
	if strength.Valid {
		rel.Strength = &strength.Float64
	}
	if createdAt.Valid && createdAt.String != "" {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			rel.CreatedAt = &t
		}
	}
	return rel, nil
}

// GetSnapshot returns the full graph state. Both scans run inside one
// transaction so the node and relationship sets describe the same instant;
// a snapshot never pairs a relationship with a missing endpoint.
func (r *Repository) GetSnapshot(ctx context.Context) (*graph.GraphSnapshot, error) {
	var snapshot *graph.GraphSnapshot
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		nodes, err := listNodesTx(ctx, tx)
		if err != nil {
			return err
		}
		rels, err := listRelationshipsTx(ctx, tx)
		if err != nil {
			return err
		}
		snapshot = &graph.GraphSnapshot{Nodes: nodes, Relationships: rels}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ListNodes returns all nodes, unordered full scan.
func (r *Repository) ListNodes(ctx context.Context) ([]graph.Node, error) {
	var nodes []graph.Node
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		nodes, err = listNodesTx(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func listNodesTx(ctx context.Context, tx *sql.Tx) ([]graph.Node, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+nodeColumns()+` FROM nodes`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list nodes", err)
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan node", err)
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// ListRelationships returns all relationships, unordered full scan.
func (r *Repository) ListRelationships(ctx context.Context) ([]graph.Relationship, error) {
	var rels []graph.Relationship
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		rels, err = listRelationshipsTx(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}

func listRelationshipsTx(ctx context.Context, tx *sql.Tx) ([]graph.Relationship, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, source_id, target_id, type, strength, created_datetime FROM relationships`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list relationships", err)
	}
	defer rows.Close()

	var rels []graph.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan relationship", err)
		}
		rels = append(rels, *rel)
	}
	return rels, rows.Err()
}

// GetNode returns the node or (nil, nil) when absent.
func (r *Repository) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	var node *graph.Node
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		node, err = getNodeTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func getNodeTx(ctx context.Context, tx *sql.Tx, id string) (*graph.Node, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+nodeColumns()+` FROM nodes WHERE id = ?`, id)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get node", err)
	}
	return node, nil
}

// GetRelationship returns the relationship or (nil, nil) when absent.
func (r *Repository) GetRelationship(ctx context.Context, id string) (*graph.Relationship, error) {
	var rel *graph.Relationship
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		rel, err = getRelationshipTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func getRelationshipTx(ctx context.Context, tx *sql.Tx, id string) (*graph.Relationship, error) {
	row := tx.QueryRowContext(ctx, `SELECT id, source_id, target_id, type, strength, created_datetime FROM relationships WHERE id = ?`, id)
	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get relationship", err)
	}
	return rel, nil
}

// CreateNode inserts the node. A duplicate id is rejected by the store's
// primary key constraint and surfaced as a conflict, not pre-checked.
func (r *Repository) CreateNode(ctx context.Context, node graph.Node) (*graph.Node, error) {
	metadata := node.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.NewInternalError("marshal node metadata").WithCause(err)
	}

	args := make([]any, 0, len(graph.Fields())+1)
	placeholders := make([]string, 0, len(graph.Fields())+1)
	for _, f := range graph.Fields() {
		v, ok := f.Value(&node)
		if ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
		placeholders = append(placeholders, "?")
	}
	args = append(args, string(metadataJSON))
	placeholders = append(placeholders, "?")

	var created *graph.Node
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		stmt := fmt.Sprintf("INSERT INTO nodes (%s) VALUES (%s)", nodeColumns(), strings.Join(placeholders, ", "))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewConflictError(fmt.Sprintf("node with ID '%s' already exists", node.ID))
			}
			return apperrors.NewDatabaseError("create node", err)
		}
		var err error
		created, err = getNodeTx(ctx, tx, node.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateNode applies only the fields present in the patch. Unknown fields
// never reach this point: the patch is typed against the schema registry.
// Returns (nil, nil) when the id is unknown; no write happens in that case.
func (r *Repository) UpdateNode(ctx context.Context, id string, patch graph.NodePatch) (*graph.Node, error) {
	var updated *graph.Node
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getNodeTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}

		sets := make([]string, 0, len(graph.Fields())+1)
		args := make([]any, 0, len(graph.Fields())+2)
		for _, f := range graph.Fields() {
			if v, ok := f.Patch(&patch); ok {
				sets = append(sets, f.Name+" = ?")
				args = append(args, v)
			}
		}
		if patch.Metadata != nil {
			metadataJSON, err := json.Marshal(patch.Metadata)
			if err != nil {
				return apperrors.NewInternalError("marshal node metadata").WithCause(err)
			}
			sets = append(sets, "metadata_json = ?")
			args = append(args, string(metadataJSON))
		}

		if len(sets) > 0 {
			args = append(args, id)
			stmt := fmt.Sprintf("UPDATE nodes SET %s WHERE id = ?", strings.Join(sets, ", "))
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return apperrors.NewDatabaseError("update node", err)
			}
		}

		updated, err = getNodeTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteNode removes the node and cascades deletion of every relationship
// referencing it, in one transaction. Returns false when the id is unknown.
func (r *Repository) DeleteNode(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
			return apperrors.NewDatabaseError("delete node relationships", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
		if err != nil {
			return apperrors.NewDatabaseError("delete node", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return apperrors.NewDatabaseError("delete node", err)
		}
		deleted = rows > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// CreateRelationship verifies both endpoints exist, then inserts. A duplicate
// derived id is rejected by the primary key constraint: concurrent creates
// racing on the same id resolve by letting the store reject the loser.
func (r *Repository) CreateRelationship(ctx context.Context, rel graph.Relationship) (*graph.Relationship, error) {
	var created *graph.Relationship
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, endpoint := range []struct{ role, id string }{
			{"source", rel.SourceID},
			{"target", rel.TargetID},
		} {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, endpoint.id).Scan(&one)
			if err == sql.ErrNoRows {
				return apperrors.NewNotFoundError(fmt.Sprintf("%s node not found: %s", endpoint.role, endpoint.id))
			}
			if err != nil {
				return apperrors.NewDatabaseError("check relationship endpoint", err)
			}
		}

		var strength any
		if rel.Strength != nil {
			strength = *rel.Strength
		}
		var createdAt any
		if rel.CreatedAt != nil {
			createdAt = rel.CreatedAt.UTC().Format(time.RFC3339)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO relationships (id, source_id, target_id, type, strength, created_datetime) VALUES (?, ?, ?, ?, ?, ?)`,
			rel.ID, rel.SourceID, rel.TargetID, rel.Type, strength, createdAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewConflictError(fmt.Sprintf("relationship already exists with ID: %s", rel.ID))
			}
			return apperrors.NewDatabaseError("create relationship", err)
		}

		created, err = getRelationshipTx(ctx, tx, rel.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRelationship applies only the fields present in the patch. Identity
// fields are not updatable; the derived id stays consistent by construction.
func (r *Repository) UpdateRelationship(ctx context.Context, id string, patch graph.RelationshipPatch) (*graph.Relationship, error) {
	var updated *graph.Relationship
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getRelationshipTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}

		sets := make([]string, 0, 2)
		args := make([]any, 0, 3)
		if patch.Strength != nil {
			sets = append(sets, "strength = ?")
			args = append(args, *patch.Strength)
		}
		if patch.CreatedAt != nil {
			t, err := time.Parse(time.RFC3339, *patch.CreatedAt)
			if err != nil {
				return apperrors.NewValidationError(fmt.Sprintf("invalid created_datetime: %q", *patch.CreatedAt))
			}
			sets = append(sets, "created_datetime = ?")
			args = append(args, t.UTC().Format(time.RFC3339))
		}

		if len(sets) > 0 {
			args = append(args, id)
			stmt := fmt.Sprintf("UPDATE relationships SET %s WHERE id = ?", strings.Join(sets, ", "))
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return apperrors.NewDatabaseError("update relationship", err)
			}
		}

		updated, err = getRelationshipTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRelationship removes the relationship. Returns false when absent.
func (r *Repository) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
		if err != nil {
			return apperrors.NewDatabaseError("delete relationship", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return apperrors.NewDatabaseError("delete relationship", err)
		}
		deleted = rows > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
