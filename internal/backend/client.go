package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"waterz/internal/config"
	"waterz/internal/domain"
	"waterz/internal/metrics"
)

const (
	cacheKeyPrefix   = "waterz:catalog:"
	maxErrorBodySize = 64 << 10
)

// Client calls the yacht backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	validate   *validator.Validate
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		validate:   validator.New(),
		logger:     logger,
	}
	c.breaker = newBreaker(cfg.Breaker, c.logger)
	return c
}

func newBreaker(cfg config.BreakerConfig, logger *zerolog.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 3
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yacht-backend",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		// 4xx answers mean the backend is healthy and said no.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var rej *domain.BackendRejection
			return errors.As(err, &rej) && rej.Status >= 400 && rej.Status < 500
		},
	})
}

// UseRedisCache configures optional Redis caching for catalogue GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKeyPrefix+key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

func (c *Client) doGet(ctx context.Context, auth AuthContext, endpoint, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &domain.TransportError{Endpoint: endpoint, Err: err}
	}
	return c.do(req, auth, endpoint, out)
}

func (c *Client) doPost(ctx context.Context, auth AuthContext, endpoint, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &domain.TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, auth, endpoint, out)
}

// do sends the request once through the breaker. It never retries.
func (c *Client) do(req *http.Request, auth AuthContext, endpoint string, out any) error {
	req.Header.Set("Accept", "application/json")
	if !auth.IsAnonymous() {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}

	start := time.Now()
	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(req, endpoint)
	})
	if err != nil {
		var rej *domain.BackendRejection
		if errors.As(err, &rej) {
			metrics.IncBackend(endpoint, "rejected")
			c.logger.Info().Str("endpoint", endpoint).Int("status", rej.Status).Str("message", rej.Message).
				Dur("duration", time.Since(start)).Msg("backend rejected request")
			return err
		}
		metrics.IncBackend(endpoint, "transport_error")
		c.logger.Error().Err(err).Str("endpoint", endpoint).Dur("duration", time.Since(start)).Msg("backend call failed")
		var te *domain.TransportError
		if errors.As(err, &te) {
			return err
		}
		return &domain.TransportError{Endpoint: endpoint, Err: err}
	}

	body, _ := raw.([]byte)
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			metrics.IncBackend(endpoint, "invalid_response")
			return &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	metrics.IncBackend(endpoint, "ok")
	c.logger.Debug().Str("endpoint", endpoint).Str("subject", auth.Subject()).Dur("duration", time.Since(start)).Msg("backend call")
	return nil
}

func (c *Client) roundTrip(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &domain.BackendRejection{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  errorMessage(data),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("read response: %w", err)}
	}
	return data, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	return ""
}

// check validates a decoded struct; failures are treated as malformed responses.
func (c *Client) check(endpoint string, v any) error {
	if err := c.validate.Struct(v); err != nil {
		metrics.IncBackend(endpoint, "invalid_response")
		return &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return nil
}
