package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lexdesk/internal/metrics"
	"lexdesk/internal/model"
)

// maxResponseBytes caps how much of an auth response is read.
const maxResponseBytes = 1 << 20

// Submitter posts credentials to the authentication backend.
// It performs exactly one round trip per call and never retries.
type Submitter struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Submitter) { s.httpClient = c }
}

// WithMetrics records every submission outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Submitter) { s.metrics = m }
}

// NewSubmitter creates a Submitter for baseURL (e.g. https://host/api/auth).
// timeout bounds the whole round trip; exceeding it yields a network error.
func NewSubmitter(baseURL string, timeout time.Duration, opts ...Option) *Submitter {
	s := &Submitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login posts to <base>/login.
func (s *Submitter) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	return s.submit(ctx, "login", req, LoginFallbackMessage)
}

// Register posts to <base>/register.
func (s *Submitter) Register(ctx context.Context, req model.RegisterRequest) (*model.TokenResponse, error) {
	return s.submit(ctx, "register", req, RegisterFallbackMessage)
}

type failurePayload struct {
	Message string `json:"message"`
}

func (s *Submitter) submit(ctx context.Context, operation string, payload any, fallback string) (*model.TokenResponse, error) {
	res, err := s.roundTrip(ctx, operation, payload, fallback)
	s.metrics.AuthSubmission(operation, resultLabel(err))
	return res, err
}

func (s *Submitter) roundTrip(ctx context.Context, operation string, payload any, fallback string) (*model.TokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+operation, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var fp failurePayload
		if json.Unmarshal(raw, &fp) == nil {
			if msg := strings.TrimSpace(fp.Message); msg != "" {
				return nil, rejectedError(resp.StatusCode, msg)
			}
		}
		return nil, rejectedError(resp.StatusCode, fallback)
	}

	var out model.TokenResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.Token == "" {
		return nil, rejectedError(resp.StatusCode, fallback)
	}
	return &out, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsRejected(err):
		return "rejected"
	default:
		return "network"
	}
}
