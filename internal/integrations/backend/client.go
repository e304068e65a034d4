package backend

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
)

const (
	DefaultBaseURL = "https://hawy-backend.onrender.com"
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
	maxErrorBytes    = 4096
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
	// Token is sent as a bearer credential when set; it is not part of the body.
	Token string `json:"-"`
}

// ChatReply is the success body of POST /api/chat.
type ChatReply struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is the success body of the login and signup endpoints.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// HTTPStatusError captures non-2xx backend responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Detail is the response body text, trimmed, for showing to the user.
func (e *HTTPStatusError) Detail() string {
	return strings.TrimSpace(e.Body)
}

// Client talks to the Hawy backend over JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every request; expiry surfaces as a transport error.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolvedHTTPClient returns the configured HTTP client, or a default with the
// standard timeout if none was set.
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimSuffix(base, "/api")
	return base + "/api" + path
}

// Chat sends one user turn and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (ChatReply, error) {
	if strings.TrimSpace(in.Message) == "" {
		return ChatReply{}, errors.New("backend: message must not be empty")
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return ChatReply{}, errors.New("backend: session id must not be empty")
	}

	var reply ChatReply
	if err := c.postJSON(ctx, "/chat", in, in.Token, &reply); err != nil {
		return ChatReply{}, fmt.Errorf("backend: chat: %w", err)
	}
	if strings.TrimSpace(reply.Response) == "" {
		return ChatReply{}, errors.New("backend: chat: empty response")
	}
	return reply, nil
}

func (c *Client) Login(ctx context.Context, in LoginRequest) (AuthResponse, error) {
	var out AuthResponse
	if err := c.postJSON(ctx, "/auth/login", in, "", &out); err != nil {
		return AuthResponse{}, fmt.Errorf("backend: login: %w", err)
	}
	if err := validateAuth(out); err != nil {
		return AuthResponse{}, fmt.Errorf("backend: login: %w", err)
	}
	return out, nil
}

func (c *Client) Signup(ctx context.Context, in SignupRequest) (AuthResponse, error) {
	var out AuthResponse
	if err := c.postJSON(ctx, "/auth/signup", in, "", &out); err != nil {
		return AuthResponse{}, fmt.Errorf("backend: signup: %w", err)
	}
	if err := validateAuth(out); err != nil {
		return AuthResponse{}, fmt.Errorf("backend: signup: %w", err)
	}
	return out, nil
}

func validateAuth(out AuthResponse) error {
	if strings.TrimSpace(out.Token) == "" {
		return errors.New("missing token in response")
	}
	if strings.TrimSpace(out.User.Email) == "" {
		return errors.New("missing user email in response")
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in any, token string, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := endpointURL(c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("request failed: %w", doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBytes))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
