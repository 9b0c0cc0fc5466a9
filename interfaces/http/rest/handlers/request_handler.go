package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"relgraph-backend/application/ports"
	"relgraph-backend/application/services"
	"relgraph-backend/domain/graph"
	"relgraph-backend/pkg/auth"
	"relgraph-backend/pkg/observability"
	"relgraph-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RequestHandler handles node request submission and lookup.
type RequestHandler struct {
	approval *services.ApprovalService
	requests ports.RequestRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewRequestHandler creates a new request handler. metrics may be nil.
func NewRequestHandler(approval *services.ApprovalService, requests ports.RequestRepository, metrics *observability.Metrics, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		approval: approval,
		requests: requests,
		metrics:  metrics,
		logger:   logger,
	}
}

// SubmitRequestBody represents the request body for proposing a node.
type SubmitRequestBody struct {
	NodeID      string         `json:"node_id" validate:"required,min=1,max=64"`
	NodeType    string         `json:"node_type" validate:"required,max=32"`
	Label       string         `json:"label" validate:"required,min=1,max=200"`
	Description string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Sector      string         `json:"sector,omitempty" validate:"omitempty,max=100"`
	Color       string         `json:"color,omitempty" validate:"omitempty,max=16"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RequestResponse is the wire shape of a node request record.
type RequestResponse struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	NodeID          string            `json:"node_id"`
	NodeType        string            `json:"node_type"`
	Label           string            `json:"label"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ApproverID      string            `json:"approver_id,omitempty"`
	ApprovedAt      string            `json:"approved_at,omitempty"`
	CreatedAt       string            `json:"created_at"`
	Node            *graph.NodeDetail `json:"node,omitempty"`
}

// SubmitRequest handles POST /api/node-requests. The approval workflow runs
// synchronously; a rejection is a successful response carrying the reason.
func (h *RequestHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(body); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	request, node, err := h.approval.Process(r.Context(), services.SubmitNodeRequest{
		RequestorID: auth.UserIDFromContext(r.Context()),
		NodeID:      body.NodeID,
		NodeType:    body.NodeType,
		Label:       body.Label,
		Description: body.Description,
		Sector:      body.Sector,
		Color:       body.Color,
		Metadata:    body.Metadata,
	})
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveNodeRequest(string(request.Status))
	}

	status := http.StatusOK
	if request.Status == graph.RequestApproved {
		status = http.StatusCreated
	}
	respondJSON(w, h.logger, status, requestResponse(request, node))
}

// GetRequest handles GET /api/node-requests/{requestID}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	request, err := h.requests.GetRequest(r.Context(), requestID)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	if request == nil {
		respondError(w, h.logger, http.StatusNotFound, "request not found: "+requestID)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, requestResponse(request, nil))
}

// ListRequests handles GET /api/node-requests
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListRequests(r.Context())
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	out := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		out = append(out, requestResponse(&requests[i], nil))
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"requests": out})
}

func requestResponse(request *graph.NodeRequest, node *graph.Node) RequestResponse {
	resp := RequestResponse{
		ID:              request.ID,
		Status:          string(request.Status),
		NodeID:          request.NodeID,
		NodeType:        request.NodeType,
		Label:           request.Label,
		RejectionReason: request.RejectionReason,
		ApproverID:      request.ApproverID,
		CreatedAt:       request.CreatedAt.UTC().Format(time.RFC3339),
	}
	if request.ApprovedAt != nil {
		resp.ApprovedAt = request.ApprovedAt.UTC().Format(time.RFC3339)
	}
	if node != nil {
		detail := node.Detail()
		resp.Node = &detail
	}
	return resp
}
