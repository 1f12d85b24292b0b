// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the loan-origination platform's auth endpoints.
//
// Only the four session endpoints are covered: login, logout, me and
// extend-session. Everything else the platform exposes is out of scope.
//
// SECURITY: Request logging never includes headers or bodies.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/logging"
	"github.com/jeranaias/lendgate-tui/internal/util"
)

// Endpoint paths relative to the API base URL.
const (
	PathLogin         = "/api/auth/login"
	PathLogout        = "/api/auth/logout"
	PathMe            = "/api/auth/me"
	PathExtendSession = "/api/auth/extend-session"
)

const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 1 * 1024 * 1024

	// HeaderRequestID carries a per-request correlation id.
	HeaderRequestID = "X-Request-ID"
)

// Error variables for common API failures.
var (
	// ErrNoToken indicates an authenticated call was attempted without a stored token.
	ErrNoToken = errors.New("not signed in")

	// ErrUnauthorized indicates the token or credentials were rejected (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission (403).
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates too many requests were made (429).
	ErrRateLimited = errors.New("rate limited")
)

// APIError represents a non-2xx response from the platform API.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
}

// StatusCode extracts the HTTP status from err, or 0 if err is not an API error.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// TokenSource supplies the bearer token for authenticated requests.
type TokenSource interface {
	GetToken() (string, bool)
}

// Client talks to the platform auth endpoints.
type Client struct {
	baseURL    string
	userAgent  string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for baseURL that reads its bearer token from tokens.
// The client keeps a cookie jar so server-side session cookies accompany the token.
func NewClient(baseURL string, tokens TokenSource) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: "lendgate-tui",
		tokens:    tokens,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		logger: zap.NewNop(),
	}
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithLogger sets the structured logger.
func (c *Client) WithLogger(l *zap.Logger) *Client {
	c.logger = logging.OrNop(l)
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Login exchanges email and password for a token and user snapshot.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, PathLogin, "", body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("login response missing token")
	}
	return &out, nil
}

// Logout asks the server to invalidate the current session.
func (c *Client) Logout(ctx context.Context) error {
	token, err := c.bearer()
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, PathLogout, token, nil, nil)
}

// Me returns the current user and the server's session record.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	token, err := c.bearer()
	if err != nil {
		return nil, err
	}
	var out MeResponse
	if err := c.do(ctx, http.MethodGet, PathMe, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtendSession asks the server to push the session expiry forward.
// The response carries no new expiry; callers re-poll Me to learn it.
func (c *Client) ExtendSession(ctx context.Context) error {
	token, err := c.bearer()
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, PathExtendSession, token, nil, nil)
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) bearer() (string, error) {
	if c.tokens == nil {
		return "", ErrNoToken
	}
	token, ok := c.tokens.GetToken()
	if !ok || token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// setHeaders sets the headers every platform request carries.
func (c *Client) setHeaders(req *http.Request, token, requestID string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	c.setHeaders(req, token, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// SECURITY: Clear Authorization header so nothing downstream can log it.
	req.Header.Del("Authorization")

	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api response",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("token_fp", util.Fingerprint(token)),
	)

	data, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to Go errors.
// The returned error always unwraps to *APIError; well-known statuses also
// match their sentinel via errors.Is.
func handleErrorResponse(status int, body []byte) error {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = eb.Error
		if apiErr.Message == "" {
			apiErr.Message = eb.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = util.TruncateRunes(strings.TrimSpace(string(body)), 200)
	}

	switch status {
	case http.StatusUnauthorized:
		return &statusError{sentinel: ErrUnauthorized, api: apiErr}
	case http.StatusForbidden:
		return &statusError{sentinel: ErrForbidden, api: apiErr}
	case http.StatusTooManyRequests:
		return &statusError{sentinel: ErrRateLimited, api: apiErr}
	default:
		return apiErr
	}
}

// statusError pairs a sentinel with the API error it came from.
type statusError struct {
	sentinel error
	api      *APIError
}

func (e *statusError) Error() string {
	if e.api.Message == "" {
		return e.sentinel.Error()
	}
	return fmt.Sprintf("%s: %s", e.sentinel, e.api.Message)
}

func (e *statusError) Unwrap() []error {
	return []error{e.sentinel, e.api}
}
