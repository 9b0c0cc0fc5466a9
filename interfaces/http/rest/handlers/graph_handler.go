package handlers

import (
	"net/http"

	"relgraph-backend/application/services"
	"relgraph-backend/domain/graph"
	"relgraph-backend/pkg/observability"

	"go.uber.org/zap"
)

// GraphHandler serves the read-side endpoints: the graph payload and search.
type GraphHandler struct {
	service     *services.GraphService
	searchLimit int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewGraphHandler creates a new graph handler. metrics may be nil.
func NewGraphHandler(service *services.GraphService, searchLimit int, metrics *observability.Metrics, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		service:     service,
		searchLimit: searchLimit,
		metrics:     metrics,
		logger:      logger,
	}
}

// GraphResponse is the wire shape of the full graph.
type GraphResponse struct {
	Nodes []graph.NodePayload `json:"nodes"`
	Edges []graph.EdgePayload `json:"edges"`
}

// GetGraph handles GET /api/nodes
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetSnapshot(r.Context())
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, GraphResponse{
		Nodes: snapshot.NodePayloads(),
		Edges: snapshot.EdgePayloads(),
	})
}

// SearchResult is one ranked match.
type SearchResult struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Type   string   `json:"type,omitempty"`
	Sector string   `json:"sector,omitempty"`
	Score  *float64 `json:"score,omitempty"`
}

// SearchResponse echoes the query alongside the ranked results.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// Search handles GET /api/search?q=...
func (h *GraphHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	nodes, err := h.service.SearchNodes(r.Context(), query, h.searchLimit)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveSearch()
	}

	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		result := SearchResult{
			ID:     node.ID,
			Label:  node.Label,
			Type:   node.Type,
			Sector: node.Sector,
		}
		if score, ok := node.Metadata["score"].(float64); ok {
			s := score
			result.Score = &s
		}
		results = append(results, result)
	}

	respondJSON(w, h.logger, http.StatusOK, SearchResponse{Query: query, Results: results})
}
