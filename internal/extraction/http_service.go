package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// HTTPConfig holds configuration for the HTTP extraction service.
type HTTPConfig struct {
	BaseURL string
	APIKey  string

	// Timeout bounds the whole call, retries included. Default: 20s
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Default: 2
	MaxRetries int

	// Backoff is the wait before each retry. The last entry is reused when
	// there are more retries than entries. Default: 250ms, 800ms
	Backoff []time.Duration

	// RateLimit is requests per second; zero disables the limiter.
	RateLimit float64
	RateBurst int

	Breaker CircuitBreakerConfig
}

// DefaultHTTPConfig returns the production retry and breaker settings.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:    20 * time.Second,
		MaxRetries: 2,
		Backoff:    []time.Duration{250 * time.Millisecond, 800 * time.Millisecond},
		RateLimit:  5,
		RateBurst:  5,
		Breaker:    DefaultCircuitBreakerConfig(),
	}
}

// HTTPService implements Service against the remote extraction endpoint.
type HTTPService struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *CircuitBreaker
	log     *logger.Logger
}

// NewHTTPService creates an HTTP extraction service. Zero-valued timing
// fields take defaults.
func NewHTTPService(cfg HTTPConfig, log *logger.Logger) (*HTTPService, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("extraction: base URL is required")
	}
	def := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = def.Backoff
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	log = logger.OrNop(log).With("component", "extraction-http")

	s := &HTTPService{
		cfg:     cfg,
		client:  &http.Client{},
		breaker: NewCircuitBreaker(cfg.Breaker, log),
		log:     log,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (s *HTTPService) Breaker() *CircuitBreaker {
	return s.breaker
}

// Extract sends req to the service. Transient failures are retried within
// the hard timeout; the returned error always carries a result.Kind.
func (s *HTTPService) Extract(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, result.Errorf(result.KindMalformed, "failed to marshal request: %w", err)
	}

	out, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.extractWithRetry(ctx, body)
	})
	if err != nil {
		return nil, classify(ctx, err)
	}
	return out.(*Response), nil
}

func (s *HTTPService) extractWithRetry(ctx context.Context, body []byte) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := s.backoff(attempt)
			s.log.Debug("retrying extraction", "attempt", attempt, "backoff", wait, "error", lastErr)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := s.post(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *HTTPService) backoff(attempt int) time.Duration {
	i := attempt - 1
	if i >= len(s.cfg.Backoff) {
		i = len(s.cfg.Backoff) - 1
	}
	return s.cfg.Backoff[i]
}

func (s *HTTPService) post(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, result.Errorf(result.KindTransport, "failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transportError{err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &transportError{
			status: resp.StatusCode,
			err:    fmt.Errorf("service returned status %d: %s", resp.StatusCode, truncate(string(data), 200)),
		}
	}
	return ParseResponse(data)
}

// transportError is a failed round trip. status is zero for network errors.
type transportError struct {
	status int
	err    error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transportError
	if !errors.As(err, &te) {
		return false
	}
	switch te.status {
	case 0, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// classify tags err with the Kind the caller reports.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return &result.Error{Kind: result.KindCircuitOpen, Err: err}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &result.Error{Kind: result.KindTimeout, Err: err}
	case result.KindOf(err) != result.KindNone:
		return err
	default:
		return &result.Error{Kind: result.KindTransport, Err: err}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Service = (*HTTPService)(nil)
