package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relgraph-backend/application/services"
	"relgraph-backend/domain/graph"
	"relgraph-backend/infrastructure/config"
	"relgraph-backend/infrastructure/persistence/seed"
	"relgraph-backend/interfaces/http/rest/middleware"
	"relgraph-backend/pkg/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

type approveAllValidator struct {
	name string
}

func (v approveAllValidator) Validate(_ context.Context, _ string) (services.Validation, error) {
	return services.Validation{Valid: true, Name: v.name}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	cfg := &config.Config{
		Environment:          "development",
		AllowedNodeType:      "company",
		SearchLimit:          5,
		JWTSecret:            testSecret,
		RequireAuthForWrites: true,
	}

	repo := seed.New(11, 4)
	users := seed.NewUserRepository()
	requests := seed.NewRequestRepository()

	graphService := services.NewGraphService(repo, cfg.AllowedNodeType, false, logger)
	approval := services.NewApprovalService(repo, requests, approveAllValidator{name: "Approved Co"}, cfg.AllowedNodeType, logger)

	jwtValidator, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: testSecret})
	require.NoError(t, err)
	authenticator := middleware.NewAuthenticator(jwtValidator, users, logger)

	return NewRouter(cfg, graphService, approval, repo, requests, authenticator, nil, logger).Setup()
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	handler := newTestRouter(t)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestGetGraphPayload(t *testing.T) {
	handler := newTestRouter(t)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/nodes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	nodes := body["nodes"].([]any)
	edges := body["edges"].([]any)
	assert.Len(t, nodes, 4)
	assert.NotEmpty(t, edges)

	first := nodes[0].(map[string]any)
	assert.Contains(t, first, "id")
	data := first["data"].(map[string]any)
	assert.Equal(t, "company", data["type"])
}

func TestGetNodeDetail(t *testing.T) {
	handler := newTestRouter(t)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/nodes/node-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "node-1", body["id"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "company", data["type"])
	assert.Equal(t, "Company 1", data["label"])

	rec, body = doJSON(t, handler, http.MethodGet, "/api/nodes/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, true, body["error"])
}

func TestSearch(t *testing.T) {
	handler := newTestRouter(t)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/search?q=company", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "company", body["query"])
	results := body["results"].([]any)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 4)

	rec, body = doJSON(t, handler, http.MethodGet, "/api/search?q=", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["results"])
}

func TestWritesRequireAuth(t *testing.T) {
	handler := newTestRouter(t)

	rec, body := doJSON(t, handler, http.MethodPost, "/api/nodes", "", map[string]any{
		"id": "NEWCO", "label": "New Co",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, true, body["error"])
}

func TestNodeLifecycle(t *testing.T) {
	handler := newTestRouter(t)
	token := bearerToken(t, "user-1")

	rec, body := doJSON(t, handler, http.MethodPost, "/api/nodes", token, map[string]any{
		"id":     "NEWCO",
		"label":  "New Co",
		"sector": "AI",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "NEWCO", body["id"])
	data := body["data"].(map[string]any)
	// the registry default fills in the type
	assert.Equal(t, "company", data["type"])

	rec, body = doJSON(t, handler, http.MethodPut, "/api/nodes/NEWCO", token, map[string]any{
		"label": "Renamed Co",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, "Renamed Co", data["label"])
	assert.Equal(t, "AI", data["sector"], "untouched fields survive a partial update")

	rec, _ = doJSON(t, handler, http.MethodDelete, "/api/nodes/NEWCO", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/nodes/NEWCO", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRelationshipLifecycle(t *testing.T) {
	handler := newTestRouter(t)
	token := bearerToken(t, "user-1")

	rec, body := doJSON(t, handler, http.MethodPost, "/api/relationships", token, map[string]any{
		"source":   "node-1",
		"target":   "node-3",
		"type":     "supplies",
		"strength": 0.8,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, graph.DeriveRelationshipID("node-1", "node-3", "supplies"), body["id"])
	assert.Equal(t, 0.8, body["strength"])

	rec, body = doJSON(t, handler, http.MethodPost, "/api/relationships", token, map[string]any{
		"source": "node-1",
		"target": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, true, body["error"])
}

func TestNodeRequestWorkflow(t *testing.T) {
	handler := newTestRouter(t)

	t.Run("anonymous submission is rejected with the auth reason", func(t *testing.T) {
		rec, body := doJSON(t, handler, http.MethodPost, "/api/node-requests", "", map[string]any{
			"node_id":   "ACME",
			"node_type": "company",
			"label":     "Acme",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "rejected", body["status"])
		assert.Equal(t, "user must be authenticated to create nodes", body["rejection_reason"])
	})

	t.Run("authenticated submission is approved and creates the node", func(t *testing.T) {
		token := bearerToken(t, "user-2")
		rec, body := doJSON(t, handler, http.MethodPost, "/api/node-requests", token, map[string]any{
			"node_id":   "ACME",
			"node_type": "company",
			"label":     "acme",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "approved", body["status"])
		assert.Equal(t, "Approved Co", body["label"], "authoritative name wins")

		requestID := body["id"].(string)
		rec, body = doJSON(t, handler, http.MethodGet, "/api/node-requests/"+requestID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "approved", body["status"])

		rec, _ = doJSON(t, handler, http.MethodGet, "/api/nodes/ACME", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
