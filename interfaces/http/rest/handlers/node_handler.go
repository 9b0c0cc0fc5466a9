package handlers

import (
	"encoding/json"
	"net/http"

	"relgraph-backend/application/ports"
	"relgraph-backend/application/services"
	"relgraph-backend/domain/graph"
	"relgraph-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	repo    ports.GraphRepository
	service *services.GraphService
	logger  *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(repo ports.GraphRepository, service *services.GraphService, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{
		repo:    repo,
		service: service,
		logger:  logger,
	}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	ID          string         `json:"id" validate:"required,min=1,max=64"`
	Type        string         `json:"type,omitempty" validate:"omitempty,max=32"`
	Label       string         `json:"label" validate:"required,min=1,max=200"`
	Description string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Sector      string         `json:"sector,omitempty" validate:"omitempty,max=100"`
	Color       string         `json:"color,omitempty" validate:"omitempty,max=16"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateNodeRequest represents the request body for partially updating a
// node. Absent fields are left untouched; unknown keys are dropped.
type UpdateNodeRequest struct {
	Type        *string        `json:"type,omitempty" validate:"omitempty,max=32"`
	Label       *string        `json:"label,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=2000"`
	Sector      *string        `json:"sector,omitempty" validate:"omitempty,max=100"`
	Color       *string        `json:"color,omitempty" validate:"omitempty,max=16"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// GetNode handles GET /api/nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	detail, err := h.service.GetNodeDetail(r.Context(), nodeID)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	if detail == nil {
		respondError(w, h.logger, http.StatusNotFound, "node not found: "+nodeID)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, detail)
}

// CreateNode handles POST /api/nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	node := graph.Node{
		ID:          req.ID,
		Type:        req.Type,
		Label:       req.Label,
		Description: req.Description,
		Sector:      req.Sector,
		Color:       req.Color,
		Metadata:    req.Metadata,
	}
	if node.Type == "" {
		if f, ok := graph.FieldByName("type"); ok && f.HasDefault {
			node.Type = f.Default
		}
	}

	created, err := h.repo.CreateNode(r.Context(), node)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, created.Detail())
}

// UpdateNode handles PUT /api/nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	patch := graph.NodePatch{
		Type:        req.Type,
		Label:       req.Label,
		Description: req.Description,
		Sector:      req.Sector,
		Color:       req.Color,
		Metadata:    req.Metadata,
	}

	updated, err := h.repo.UpdateNode(r.Context(), nodeID, patch)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	if updated == nil {
		respondError(w, h.logger, http.StatusNotFound, "node not found: "+nodeID)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, updated.Detail())
}

// DeleteNode handles DELETE /api/nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	deleted, err := h.repo.DeleteNode(r.Context(), nodeID)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	if !deleted {
		respondError(w, h.logger, http.StatusNotFound, "node not found: "+nodeID)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"message": "node deleted",
		"id":      nodeID,
	})
}
