// Package rest wires the HTTP surface: routing, middleware and handlers.
package rest

import (
	"net/http"

	"relgraph-backend/application/ports"
	"relgraph-backend/application/services"
	"relgraph-backend/infrastructure/config"
	"relgraph-backend/interfaces/http/rest/handlers"
	"relgraph-backend/interfaces/http/rest/middleware"
	"relgraph-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg           *config.Config
	graphService  *services.GraphService
	approval      *services.ApprovalService
	graphRepo     ports.GraphRepository
	requests      ports.RequestRepository
	authenticator *middleware.Authenticator
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewRouter creates a new router instance. metrics may be nil when disabled.
func NewRouter(
	cfg *config.Config,
	graphService *services.GraphService,
	approval *services.ApprovalService,
	graphRepo ports.GraphRepository,
	requests ports.RequestRepository,
	authenticator *middleware.Authenticator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:           cfg,
		graphService:  graphService,
		approval:      approval,
		graphRepo:     graphRepo,
		requests:      requests,
		authenticator: authenticator,
		metrics:       metrics,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(rt.metrics.Middleware)
	}

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/api/health", rt.healthCheck)

	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	graphHandler := handlers.NewGraphHandler(rt.graphService, rt.cfg.SearchLimit, rt.metrics, rt.logger)
	nodeHandler := handlers.NewNodeHandler(rt.graphRepo, rt.graphService, rt.logger)
	relHandler := handlers.NewRelationshipHandler(rt.graphRepo, rt.logger)
	requestHandler := handlers.NewRequestHandler(rt.approval, rt.requests, rt.metrics, rt.logger)

	router.Route("/api", func(r chi.Router) {
		// Reads are public
		r.Get("/nodes", graphHandler.GetGraph)
		r.Get("/nodes/{nodeID}", nodeHandler.GetNode)
		r.Get("/search", graphHandler.Search)
		r.Get("/node-requests", requestHandler.ListRequests)
		r.Get("/node-requests/{requestID}", requestHandler.GetRequest)

		// The approval workflow decides authentication itself; anonymous
		// submissions become rejected requests with the auth reason.
		r.With(rt.authenticator.OptionalAuthenticate).Post("/node-requests", requestHandler.SubmitRequest)

		// Direct writes
		r.Group(func(r chi.Router) {
			if rt.cfg.RequireAuthForWrites {
				r.Use(rt.authenticator.Authenticate)
			}
			r.Post("/nodes", nodeHandler.CreateNode)
			r.Put("/nodes/{nodeID}", nodeHandler.UpdateNode)
			r.Delete("/nodes/{nodeID}", nodeHandler.DeleteNode)

			r.Post("/relationships", relHandler.CreateRelationship)
			r.Put("/relationships/{relationshipID}", relHandler.UpdateRelationship)
			r.Delete("/relationships/{relationshipID}", relHandler.DeleteRelationship)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
