// Package client fetches pages of posts from a WordPress REST endpoint.
//
// Every call issues exactly one GET. There is no caching and no retry; the
// caller decides what a failed page means.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/wp-loadmore/pkg/logging"
	"github.com/Sternrassler/wp-loadmore/pkg/render"
)

// Response headers carrying pagination totals.
const (
	HeaderTotal      = "X-WP-Total"
	HeaderTotalPages = "X-WP-TotalPages"
	HeaderRequestID  = "X-Request-ID"
)

// Prometheus metrics for posts requests.
var (
	wpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wp_requests_total",
		Help: "Total posts requests by host and status",
	}, []string{"host", "status"})

	wpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wp_request_duration_seconds",
		Help:    "Posts request duration in seconds by host",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"host"})

	wpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wp_errors_total",
		Help: "Total posts request errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassUnexpected represents non-2xx answers below 400.
	ErrorClassUnexpected ErrorClass = "unexpected"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassMalformed represents 2xx answers whose body is not a post array.
	ErrorClassMalformed ErrorClass = "malformed"
)

// Config holds the client configuration.
type Config struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a whole request including the body read.
	Timeout time.Duration

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64
}

// DefaultConfig returns a default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:    userAgent,
		Timeout:      15 * time.Second,
		MaxBodyBytes: 10 << 20,
	}
}

// Client requests pages of posts.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Page is one successful window of posts.
type Page struct {
	Posts []render.Post

	// Total is the server-reported number of posts, 0 when the header is absent.
	Total int

	// TotalPages is the server-reported number of pages, 0 when absent.
	TotalPages int

	StatusCode int
	RequestID  string
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logging.NewLogger("wp-client"),
	}, nil
}

// FetchPosts performs one GET against rawURL and decodes a page of posts.
//
// Status outside [200,300) yields an *APIError carrying the server message.
// A successful status with a body that is not a JSON array yields an error
// wrapping ErrMalformedResponse.
func (c *Client) FetchPosts(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", ErrRequest, err)
	}
	host := u.Host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrRequest, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)

	logger := c.logger.With().Str("request_id", requestID).Logger()
	logger.Debug().Str("url", rawURL).Msg("Fetching posts")

	startTime := time.Now()
	defer func() {
		wpRequestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wpErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		wpRequestsTotal.WithLabelValues(host, "network_error").Inc()
		logger.Error().Err(err).Str("url", rawURL).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        fmt.Errorf("%w: %w", ErrRequest, err),
		}
	}
	defer resp.Body.Close()

	wpRequestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		wpErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, body)
		wpErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Str("code", apiErr.Code).
			Msg(apiErr.Message)
		return nil, apiErr
	}

	posts, err := render.DecodePosts(body)
	if err != nil {
		wpErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		logger.Error().Err(err).Int("status", resp.StatusCode).Msg("Response body is not a post array")
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	page := &Page{
		Posts:      posts,
		Total:      headerInt(resp.Header, HeaderTotal),
		TotalPages: headerInt(resp.Header, HeaderTotalPages),
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Int("records", len(posts)).
		Int("total", page.Total).
		Dur("duration", time.Since(startTime)).
		Msg("Fetched posts")

	return page, nil
}

// headerInt reads a non-negative integer header, 0 when absent or invalid.
func headerInt(h http.Header, name string) int {
	v := strings.TrimSpace(h.Get(name))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
