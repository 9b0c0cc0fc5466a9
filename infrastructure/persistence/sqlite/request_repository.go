package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"relgraph-backend/domain/graph"
	apperrors "relgraph-backend/pkg/errors"
)

// RequestRepository persists node requests and their terminal outcomes.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository builds a request repository over an open database
// handle.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, requestor_id, status, node_id, node_type, label, description, sector, color, metadata_json, approver_id, approved_at, rejection_reason, created_at, updated_at`

// CreateRequest inserts the request record with whatever status it carries.
// The approval workflow writes requests only in a terminal state.
func (r *RequestRepository) CreateRequest(ctx context.Context, req *graph.NodeRequest) error {
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return apperrors.NewInternalError("marshal request metadata").WithCause(err)
	}

	var approvedAt any
	if req.ApprovedAt != nil {
		approvedAt = req.ApprovedAt.UTC().Format(time.RFC3339)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO node_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, nullIfEmpty(req.RequestorID), string(req.Status), req.NodeID, req.NodeType,
		req.Label, req.Description, nullIfEmpty(req.Sector), nullIfEmpty(req.Color),
		string(metadataJSON), nullIfEmpty(req.ApproverID), approvedAt,
		nullIfEmpty(req.RejectionReason),
		req.CreatedAt.UTC().Format(time.RFC3339), req.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("node request '%s' already exists", req.ID))
		}
		return apperrors.NewDatabaseError("create node request", err)
	}
	return nil
}

// GetRequest returns the request or (nil, nil) when absent.
func (r *RequestRepository) GetRequest(ctx context.Context, id string) (*graph.NodeRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM node_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get node request", err)
	}
	return req, nil
}

// ListRequests returns all requests, unordered full scan.
func (r *RequestRepository) ListRequests(ctx context.Context) ([]graph.NodeRequest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM node_requests`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list node requests", err)
	}
	defer rows.Close()

	var requests []graph.NodeRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan node request", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list node requests", err)
	}
	return requests, nil
}

func scanRequest(row rowScanner) (*graph.NodeRequest, error) {
	var (
		req                                               graph.NodeRequest
		status                                            string
		requestorID, sector, color, approverID, rejection sql.NullString
		approvedAt                                        sql.NullString
		metadataJSON                                      []byte
		createdAt, updatedAt                              string
	)
	err := row.Scan(&req.ID, &requestorID, &status, &req.NodeID, &req.NodeType,
		&req.Label, &req.Description, &sector, &color, &metadataJSON,
		&approverID, &approvedAt, &rejection, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	req.Status = graph.RequestStatus(status)
	req.RequestorID = requestorID.String
	req.Sector = sector.String
	req.Color = color.String
	req.ApproverID = approverID.String
	req.RejectionReason = rejection.String
	req.Metadata = map[string]any{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &req.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for request %s: %w", req.ID, err)
		}
	}
	if approvedAt.Valid && approvedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, approvedAt.String); err == nil {
			req.ApprovedAt = &t
		}
	}
	req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	req.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &req, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
