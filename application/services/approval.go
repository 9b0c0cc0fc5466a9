package services

import (
	"context"
	"fmt"
	"time"

	"relgraph-backend/application/ports"
	"relgraph-backend/domain/graph"
	apperrors "relgraph-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SystemApprover is recorded as the approver identity on auto-approved
// requests.
const SystemApprover = "system"

// ReasonServiceUnavailable is the stable rejection reason used when the
// external validator is rate-limited or unreachable. It must never be
// conflated with an invalid-identifier rejection.
const ReasonServiceUnavailable = "market data service is unavailable, try again later"

// Validation is the outcome of an external identifier lookup. When Valid,
// Name may carry the authoritative display name for the identifier; when not,
// Reason explains the failure in display-ready form.
type Validation struct {
	Valid  bool
	Reason string
	Name   string
}

// SymbolValidator checks a proposed external identifier against the market
// data service. Implementations return an unavailable-typed error when the
// service is degraded, distinct from a negative validation.
type SymbolValidator interface {
	Validate(ctx context.Context, symbol string) (Validation, error)
}

// SubmitNodeRequest carries the fields of a proposed node plus the requestor
// identity; an empty RequestorID means unauthenticated.
type SubmitNodeRequest struct {
	RequestorID string
	NodeID      string
	NodeType    string
	Label       string
	Description string
	Sector      string
	Color       string
	Metadata    map[string]any
}

// ApprovalService evaluates node requests through a fixed rule chain:
// uniqueness, authentication, type allow-list, external validation. A request
// is persisted exactly once, in its terminal state; the node itself is
// written only on the success path.
type ApprovalService struct {
	graphRepo   ports.GraphRepository
	requests    ports.RequestRepository
	validator   SymbolValidator
	allowedType string
	logger      *zap.Logger
}

// NewApprovalService builds the approval workflow.
func NewApprovalService(
	graphRepo ports.GraphRepository,
	requests ports.RequestRepository,
	validator SymbolValidator,
	allowedType string,
	logger *zap.Logger,
) *ApprovalService {
	return &ApprovalService{
		graphRepo:   graphRepo,
		requests:    requests,
		validator:   validator,
		allowedType: allowedType,
		logger:      logger,
	}
}

// Process evaluates a submission and returns the stored request plus the
// created node when approved. Rejections are normal outcomes, not errors:
// the returned request carries the status and a specific, display-ready
// rejection reason. Errors are reserved for infrastructure failures.
func (s *ApprovalService) Process(ctx context.Context, submission SubmitNodeRequest) (*graph.NodeRequest, *graph.Node, error) {
	now := time.Now().UTC()
	request := &graph.NodeRequest{
		ID:          uuid.New().String(),
		RequestorID: submission.RequestorID,
		Status:      graph.RequestPending,
		NodeID:      submission.NodeID,
		NodeType:    submission.NodeType,
		Label:       submission.Label,
		Description: submission.Description,
		Sector:      submission.Sector,
		Color:       submission.Color,
		Metadata:    submission.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// 1. uniqueness
	existing, err := s.graphRepo.GetNode(ctx, request.NodeID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return s.reject(ctx, request, fmt.Sprintf("node with ID '%s' already exists", request.NodeID))
	}

	// 2. authentication
	if request.RequestorID == "" {
		return s.reject(ctx, request, "user must be authenticated to create nodes")
	}

	// 3. type allow-list
	if request.NodeType != s.allowedType {
		reason := fmt.Sprintf("only '%s' type nodes are allowed, requested type: '%s'", s.allowedType, request.NodeType)
		return s.reject(ctx, request, reason)
	}

	// 4. external validation
	validation, err := s.validator.Validate(ctx, request.NodeID)
	if err != nil {
		if apperrors.IsUnavailable(err) {
			s.logger.Warn("symbol validator degraded",
				zap.String("node_id", request.NodeID),
				zap.Error(err),
			)
			return s.reject(ctx, request, ReasonServiceUnavailable)
		}
		return nil, nil, err
	}
	if !validation.Valid {
		return s.reject(ctx, request, validation.Reason)
	}

	// 5. success: the authoritative name overrides the submitted label
	if validation.Name != "" {
		request.Label = validation.Name
	}

	created, err := s.graphRepo.CreateNode(ctx, request.Node())
	if err != nil {
		return nil, nil, err
	}

	approvedAt := time.Now().UTC()
	request.Status = graph.RequestApproved
	request.ApproverID = SystemApprover
	request.ApprovedAt = &approvedAt
	request.UpdatedAt = approvedAt

	if err := s.requests.CreateRequest(ctx, request); err != nil {
		return nil, nil, err
	}

	s.logger.Info("node request approved",
		zap.String("request_id", request.ID),
		zap.String("node_id", created.ID),
		zap.String("requestor_id", request.RequestorID),
	)
	return request, created, nil
}

func (s *ApprovalService) reject(ctx context.Context, request *graph.NodeRequest, reason string) (*graph.NodeRequest, *graph.Node, error) {
	request.Status = graph.RequestRejected
	request.RejectionReason = reason
	request.UpdatedAt = time.Now().UTC()

	if err := s.requests.CreateRequest(ctx, request); err != nil {
		return nil, nil, err
	}

	s.logger.Info("node request rejected",
		zap.String("request_id", request.ID),
		zap.String("node_id", request.NodeID),
		zap.String("reason", reason),
	)
	return request, nil, nil
}
