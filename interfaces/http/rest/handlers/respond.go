// Package handlers contains the HTTP handlers for the graph API.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "relgraph-backend/pkg/errors"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	respondJSON(w, logger, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

// respondAppError maps the application error taxonomy onto HTTP statuses.
func respondAppError(w http.ResponseWriter, logger *zap.Logger, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		logger.Error("Unhandled error", zap.Error(err))
		respondError(w, logger, http.StatusInternalServerError, "Internal server error")
		return
	}
	if appErr.HTTPStatus >= 500 {
		logger.Error("Request failed", zap.Error(err))
	}
	respondError(w, logger, appErr.HTTPStatus, appErr.Message)
}
