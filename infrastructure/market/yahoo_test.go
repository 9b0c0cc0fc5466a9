package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "relgraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestValidator(t *testing.T, handler http.HandlerFunc) *YahooValidator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewYahooValidator(Config{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}, zap.NewNop())
}

func quoteBody(symbol, longName, shortName string) string {
	return fmt.Sprintf(
		`{"quoteResponse":{"result":[{"symbol":%q,"longName":%q,"shortName":%q}],"error":null}}`,
		symbol, longName, shortName,
	)
}

func TestValidate_KnownSymbol(t *testing.T) {
	validator := newTestValidator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, quoteBody("AAPL", "Apple Inc.", "Apple"))
	})

	result, err := validator.Validate(context.Background(), "aapl")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "Apple Inc.", result.Name)
}

func TestValidate_ShortNameFallback(t *testing.T) {
	validator := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, quoteBody("TSLA", "", "Tesla"))
	})

	result, err := validator.Validate(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "Tesla", result.Name)
}

func TestValidate_MalformedSymbolRejectedLocally(t *testing.T) {
	called := false
	validator := newTestValidator(t, func(http.ResponseWriter, *http.Request) {
		called = true
	})

	result, err := validator.Validate(context.Background(), "not a symbol!!")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "'not a symbol!!' is not a valid stock symbol", result.Reason)
	assert.False(t, called, "format rejection must not hit the endpoint")
}

func TestValidate_UnknownSymbol(t *testing.T) {
	validator := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[],"error":null}}`)
	})

	result, err := validator.Validate(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "'ZZZZ' is not a recognized stock symbol", result.Reason)
}

func TestValidate_RetriesRateLimit(t *testing.T) {
	attempts := 0
	validator := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, quoteBody("MSFT", "Microsoft Corporation", "Microsoft"))
	})

	result, err := validator.Validate(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, attempts)
}

func TestValidate_PersistentRateLimitIsUnavailable(t *testing.T) {
	attempts := 0
	validator := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := validator.Validate(context.Background(), "MSFT")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))
	assert.Equal(t, 3, attempts, "one initial attempt plus two retries")
}

func TestValidate_ServerErrorIsUnavailable(t *testing.T) {
	validator := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := validator.Validate(context.Background(), "MSFT")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))
}
