// Package market implements the external symbol validator backed by the
// Yahoo Finance quote endpoint.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"relgraph-backend/application/services"
	apperrors "relgraph-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public quote endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// symbolPattern admits the exchange identifier shapes the quote endpoint
// accepts (tickers like TSLA, BRK.B, RDS-A).
var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// Config tunes the validator client. Zero values fall back to the documented
// defaults.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// YahooValidator validates stock symbols against the Yahoo quote endpoint.
// Rate limiting and outages surface as unavailable errors so callers can
// distinguish a degraded service from a genuinely unknown symbol.
type YahooValidator struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

var _ services.SymbolValidator = (*YahooValidator)(nil)

// NewYahooValidator builds the validator client.
func NewYahooValidator(cfg Config, logger *zap.Logger) *YahooValidator {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yahoo-quote",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &YahooValidator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		breaker:    breaker,
		logger:     logger,
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol    string `json:"symbol"`
	LongName  string `json:"longName"`
	ShortName string `json:"shortName"`
}

// Validate checks the symbol format locally, then looks the symbol up on the
// quote endpoint. An unknown symbol is a negative validation with a
// display-ready reason; rate limiting, breaker rejection and transport
// failures are unavailable errors.
func (v *YahooValidator) Validate(ctx context.Context, symbol string) (services.Validation, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(normalized) {
		return services.Validation{
			Valid:  false,
			Reason: fmt.Sprintf("'%s' is not a valid stock symbol", symbol),
		}, nil
	}

	result, err := v.breaker.Execute(func() (any, error) {
		return v.lookup(ctx, normalized)
	})
	if err != nil {
		switch err {
		case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
			return services.Validation{}, apperrors.NewUnavailableError("market data circuit open")
		}
		return services.Validation{}, err
	}

	quote := result.(*quoteResult)
	if quote == nil {
		return services.Validation{
			Valid:  false,
			Reason: fmt.Sprintf("'%s' is not a recognized stock symbol", normalized),
		}, nil
	}

	name := quote.LongName
	if name == "" {
		name = quote.ShortName
	}
	return services.Validation{Valid: true, Name: name}, nil
}

// lookup performs the quote request with bounded retry on rate limiting.
// It returns (nil, nil) when the endpoint knows nothing about the symbol.
func (v *YahooValidator) lookup(ctx context.Context, symbol string) (*quoteResult, error) {
	endpoint := v.baseURL + "/v7/finance/quote?symbols=" + url.QueryEscape(symbol)

	var lastErr error
	for attempt := 0; attempt <= v.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, apperrors.NewUnavailableError("market data request cancelled: " + ctx.Err().Error())
			case <-time.After(backoff):
			}
		}

		quote, retryable, err := v.fetch(ctx, endpoint)
		if err == nil {
			return quote, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		v.logger.Warn("quote request rate limited, retrying",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, lastErr
}

func (v *YahooValidator) fetch(ctx context.Context, endpoint string) (*quoteResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, apperrors.Wrap(err, "building quote request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "relgraph-backend/1.0")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, false, apperrors.NewUnavailableError("quote endpoint unreachable: " + err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, apperrors.NewUnavailableError("quote endpoint rate limited")
	case resp.StatusCode >= 500:
		return nil, false, apperrors.NewUnavailableError(fmt.Sprintf("quote endpoint returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode != http.StatusOK:
		return nil, false, apperrors.NewUnavailableError(fmt.Sprintf("quote endpoint returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false, apperrors.NewUnavailableError("reading quote response: " + err.Error())
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, apperrors.NewUnavailableError("malformed quote response: " + err.Error())
	}
	if len(parsed.QuoteResponse.Result) == 0 {
		return nil, false, nil
	}
	return &parsed.QuoteResponse.Result[0], false, nil
}
