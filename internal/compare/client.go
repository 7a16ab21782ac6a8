// Package compare sends image pairs to the remote comparison endpoint.
package compare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/image-compare/internal/logging"
)

const (
	// HeaderRequestID carries the per-submission identifier.
	HeaderRequestID = "X-Request-ID"
	// TokenSubject is the subject of bearer tokens minted by the client.
	TokenSubject = "image-compare"

	maxResponseBytes = 1 << 20
	tokenLifetime    = 5 * time.Minute
)

// ErrMissingMessage is returned for a 200 response without a message.
var ErrMissingMessage = errors.New("comparison response has no message")

// Result is a successful comparison outcome.
type Result struct {
	Message    string
	StatusCode int
	RequestID  string
}

// StatusError is returned for any non-200 response. Message is the server-provided
// explanation and may be empty.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("comparison endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("comparison endpoint returned status %d: %s", e.StatusCode, e.Message)
}

// Client submits a comparison request.
type Client interface {
	Compare(ctx context.Context, req *Request) (*Result, error)
}

type responseBody struct {
	Message string `json:"message"`
}

// HTTPClient posts multipart requests to a fixed endpoint. It never retries.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	timeout    *time.Duration
	authSecret string
	logger     *zap.Logger
	newID      func() string
	now        func() time.Time
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithTimeout bounds each request; zero means wait indefinitely. It applies to a copy
// of the underlying *http.Client, whichever order the options come in.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		h.timeout = &d
	}
}

// WithAuthSecret enables HS256 bearer tokens signed with secret.
func WithAuthSecret(secret string) Option {
	return func(h *HTTPClient) {
		h.authSecret = strings.TrimSpace(secret)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(h *HTTPClient) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHTTPClient constructs a client for endpoint.
func NewHTTPClient(endpoint string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.timeout != nil {
		client := *h.httpClient
		client.Timeout = *h.timeout
		h.httpClient = &client
	}
	h.logger = h.logger.Named("compare_client")
	return h
}

// Compare posts req once and interprets the response.
func (h *HTTPClient) Compare(ctx context.Context, req *Request) (*Result, error) {
	requestID := h.newID()
	opLogger := logging.WithOperation(h.logger, "compare.post", requestID)

	body, contentType, err := req.encode()
	if err != nil {
		return nil, logging.NewOperationError("compare.encode", requestID, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return nil, logging.NewOperationError("compare.build_request", requestID, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)

	if h.authSecret != "" {
		token, err := h.signToken(requestID)
		if err != nil {
			return nil, logging.NewOperationError("compare.sign_token", requestID, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := h.now()
	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		opLogger.Error("comparison request failed", zap.Error(err))
		return nil, logging.NewOperationError("compare.post", requestID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		opLogger.Error("failed to read comparison response", zap.Error(err), zap.Int("status", resp.StatusCode))
		return nil, logging.NewOperationError("compare.read_response", requestID, err)
	}

	opLogger.Info("comparison response received",
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(raw)),
		zap.Duration("latency", h.now().Sub(started)))

	var payload responseBody
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: payload.Message}
	}
	if decodeErr != nil {
		return nil, logging.NewOperationError("compare.decode_response", requestID, decodeErr)
	}
	if payload.Message == "" {
		return nil, logging.NewOperationError("compare.decode_response", requestID, ErrMissingMessage)
	}

	return &Result{
		Message:    payload.Message,
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
	}, nil
}

func (h *HTTPClient) signToken(requestID string) (string, error) {
	now := h.now()
	claims := jwt.RegisteredClaims{
		Subject:   TokenSubject,
		ID:        requestID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.authSecret))
}
