package marketplace

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

	"storefront/internal/domain"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrUnavailable is returned while the circuit breaker is open
var ErrUnavailable = errors.New("marketplace temporarily unavailable")

// Config holds client settings
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

// envelope is the common response body of the marketplace API
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type rawResponse struct {
	status int
	body   []byte
}

// Client talks to the marketplace HTTP API
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*rawResponse]
	logger  *zap.Logger
}

// NewClient creates a new marketplace client
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        "marketplace",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}
}

// do performs one request through the circuit breaker. Transport failures
// and 5xx responses count against the breaker; everything else is returned
// to the caller for envelope handling.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) (*rawResponse, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	resp, err := c.breaker.Execute(func() (*rawResponse, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, err
		}
		raw := &rawResponse{status: res.StatusCode, body: data}
		if res.StatusCode >= http.StatusInternalServerError {
			return raw, fmt.Errorf("upstream status %d", res.StatusCode)
		}
		return raw, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.NetworkError{Op: op, Message: ErrUnavailable.Error(), Err: ErrUnavailable}
		}
		netErr := &domain.NetworkError{Op: op, Err: err}
		if resp != nil {
			netErr.Status = resp.status
			netErr.Message = messageOf(resp.body)
		}
		c.logger.Debug("Marketplace request failed", zap.String("op", op), zap.Error(err))
		return nil, netErr
	}
	return resp, nil
}

// call performs a request and decodes the data field of a success envelope into out
func (c *Client) call(ctx context.Context, op, method, path string, payload, out any) error {
	resp, err := c.do(ctx, op, method, path, payload)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return &domain.NetworkError{Op: op, Status: resp.status, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !env.Success || resp.status >= http.StatusBadRequest {
		if resp.status == http.StatusNotFound {
			return &domain.NetworkError{Op: op, Status: resp.status, Message: env.Message, Err: domain.ErrNotFound}
		}
		return &domain.NetworkError{Op: op, Status: resp.status, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &domain.NetworkError{Op: op, Status: resp.status, Err: fmt.Errorf("failed to decode data: %w", err)}
	}
	return nil
}

func messageOf(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

// BreakerState reports the circuit breaker state: closed, half-open or open
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}
