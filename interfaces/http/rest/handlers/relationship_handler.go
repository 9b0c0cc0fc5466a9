package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"relgraph-backend/application/ports"
	"relgraph-backend/domain/graph"
	"relgraph-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RelationshipHandler handles relationship-related HTTP requests
type RelationshipHandler struct {
	repo   ports.GraphRepository
	logger *zap.Logger
}

// NewRelationshipHandler creates a new relationship handler
func NewRelationshipHandler(repo ports.GraphRepository, logger *zap.Logger) *RelationshipHandler {
	return &RelationshipHandler{
		repo:   repo,
		logger: logger,
	}
}

// CreateRelationshipRequest represents the request body for creating a
// relationship. The id is derived from source, target and type and cannot be
// supplied by the client.
type CreateRelationshipRequest struct {
	Source    string   `json:"source" validate:"required"`
	Target    string   `json:"target" validate:"required"`
	Type      string   `json:"type,omitempty" validate:"omitempty,max=64"`
	Strength  *float64 `json:"strength,omitempty" validate:"omitempty,gte=0,lte=1"`
	CreatedAt *string  `json:"created_datetime,omitempty"`
}

// UpdateRelationshipRequest represents the request body for updating a
// relationship. Identity fields are immutable; only strength and timestamp
// can change.
type UpdateRelationshipRequest struct {
	Strength  *float64 `json:"strength,omitempty" validate:"omitempty,gte=0,lte=1"`
	CreatedAt *string  `json:"created_datetime,omitempty"`
}

// CreateRelationship handles POST /api/relationships
func (h *RelationshipHandler) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req CreateRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	relType := req.Type
	if relType == "" {
		relType = graph.RelationTypeDefault
	}

	rel := graph.Relationship{
		ID:       graph.DeriveRelationshipID(req.Source, req.Target, relType),
		SourceID: req.Source,
		TargetID: req.Target,
		Type:     relType,
		Strength: req.Strength,
	}
	if req.CreatedAt != nil {
		at, err := utils.ParseRFC3339(*req.CreatedAt)
		if err != nil {
			respondError(w, h.logger, http.StatusBadRequest, "created_datetime must be RFC3339")
			return
		}
		rel.CreatedAt = &at
	} else {
		now := time.Now().UTC()
		rel.CreatedAt = &now
	}

	created, err := h.repo.CreateRelationship(r.Context(), rel)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, edgePayload(created))
}

// UpdateRelationship handles PUT /api/relationships/{relationshipID}
func (h *RelationshipHandler) UpdateRelationship(w http.ResponseWriter, r *http.Request) {
	relID := chi.URLParam(r, "relationshipID")

	var req UpdateRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	updated, err := h.repo.UpdateRelationship(r.Context(), relID, graph.RelationshipPatch{
		Strength:  req.Strength,
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	if updated == nil {
		respondError(w, h.logger, http.StatusNotFound, "relationship not found: "+relID)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, edgePayload(updated))
}

// DeleteRelationship handles DELETE /api/relationships/{relationshipID}
func (h *RelationshipHandler) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	relID := chi.URLParam(r, "relationshipID")

	deleted, err := h.repo.DeleteRelationship(r.Context(), relID)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	if !deleted {
		respondError(w, h.logger, http.StatusNotFound, "relationship not found: "+relID)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"message": "relationship deleted",
		"id":      relID,
	})
}

func edgePayload(rel *graph.Relationship) graph.EdgePayload {
	edge := graph.EdgePayload{
		ID:       rel.ID,
		Source:   rel.SourceID,
		Target:   rel.TargetID,
		Type:     rel.Type,
		Strength: rel.Strength,
	}
	if rel.CreatedAt != nil {
		edge.CreatedAt = rel.CreatedAt.UTC().Format(time.RFC3339)
	}
	return edge
}
