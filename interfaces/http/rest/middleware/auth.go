package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"relgraph-backend/application/ports"
	"relgraph-backend/pkg/auth"

	"go.uber.org/zap"
)

// Authenticator validates tokens and attaches the user identity to request
// contexts. The user row is synced lazily: a valid token gets or creates the
// account, and a sync failure is logged but never fails the request.
type Authenticator struct {
	validator   *auth.JWTValidator
	users       ports.UserRepository
	ipLimiter   *auth.IPRateLimiter
	userLimiter *auth.UserRateLimiter
	logger      *zap.Logger
}

// NewAuthenticator builds the middleware set.
func NewAuthenticator(validator *auth.JWTValidator, users ports.UserRepository, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		validator:   validator,
		users:       users,
		ipLimiter:   auth.NewIPRateLimiter(100),
		userLimiter: auth.NewUserRateLimiter(200),
		logger:      logger,
	}
}

// Authenticate rejects requests without a valid token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		if allowed, _ := a.ipLimiter.Allow(r.Context(), clientIP); !allowed {
			respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		token := extractToken(r)
		if token == "" {
			respondUnauthorized(w, "Missing authentication token")
			return
		}

		claims, err := a.validator.ValidateToken(token)
		if err != nil {
			a.logger.Warn("Invalid token",
				zap.Error(err),
				zap.String("ip", clientIP),
				zap.String("path", r.URL.Path),
			)
			switch err {
			case auth.ErrExpiredToken:
				respondUnauthorized(w, "Token has expired")
			case auth.ErrInvalidSignature:
				respondUnauthorized(w, "Invalid token signature")
			default:
				respondUnauthorized(w, "Invalid token")
			}
			return
		}

		if allowed, _ := a.userLimiter.Allow(r.Context(), claims.UserID); !allowed {
			respondWithError(w, http.StatusTooManyRequests, "User rate limit exceeded")
			return
		}

		a.syncUser(r, claims.UserID, claims.Email)

		ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthenticate attaches the identity when a valid token is present
// and lets the request through anonymously otherwise.
func (a *Authenticator) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.validator.ValidateToken(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		a.syncUser(r, claims.UserID, claims.Email)

		ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// syncUser gets or creates the account row, best effort.
func (a *Authenticator) syncUser(r *http.Request, userID, email string) {
	if a.users == nil {
		return
	}
	if _, err := a.users.GetOrCreate(r.Context(), userID, email); err != nil {
		a.logger.Warn("user sync failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// extractToken pulls the JWT from the Authorization header.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return authHeader
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusUnauthorized, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    code,
	})
}
