package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout applies to JSON calls.
	DefaultTimeout = 30 * time.Second
	// UploadTimeout applies to multipart uploads, which carry whole PDFs.
	UploadTimeout = 180 * time.Second
)

// DefaultHTTPTransport returns an http.Transport with tuned connection
// pool settings.
func DefaultHTTPTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// Client issues single network calls against the configured base URL.
// It is stateless per call: it holds no request queues and never retries;
// retry is always a fresh user-initiated call.
type Client struct {
	baseURL    string
	auth       *AuthState
	httpClient *http.Client
	transport  *LoggingTransport
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Auth    *AuthState
	// NetworkLogDir receives network.jsonl when logging is enabled.
	NetworkLogDir      string
	NetworkLogsEnabled bool
}

// NewClient creates a transport client.
func NewClient(opts Options) *Client {
	lt := NewLoggingTransport(DefaultHTTPTransport(), opts.NetworkLogDir, opts.NetworkLogsEnabled)
	auth := opts.Auth
	if auth == nil {
		auth = NewAuthState("")
	}
	return &Client{
		baseURL:   trimBaseURL(opts.BaseURL),
		auth:      auth,
		transport: lt,
		httpClient: &http.Client{
			// Per-call deadlines come from the request context; a client-wide
			// timeout would cap uploads at the JSON timeout.
			Transport: lt,
		},
	}
}

// SetBaseURL replaces the base URL for subsequent calls.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = trimBaseURL(baseURL)
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Auth returns the process-wide auth state used by this client.
func (c *Client) Auth() *AuthState {
	return c.auth
}

// Close releases the network log file.
func (c *Client) Close() error {
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}

func trimBaseURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

// Request describes one network call.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        io.Reader
	ContentType string
	// Timeout overrides DefaultTimeout for this call.
	Timeout time.Duration
	// Authorization, when set, overrides the registered bearer token.
	Authorization string
}

// Response is the successful result of a call. Data holds the parsed JSON
// body; when the body is not valid JSON it is preserved verbatim in Raw
// instead of failing the call.
type Response struct {
	Status  int
	Data    json.RawMessage
	Raw     string
	Latency time.Duration
}

// Malformed reports whether the body could not be parsed as JSON.
func (r *Response) Malformed() bool {
	return r != nil && r.Data == nil
}

// Decode unmarshals the parsed JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || r.Data == nil {
		return fmt.Errorf("response body is not valid JSON")
	}
	return json.Unmarshal(r.Data, v)
}

// Call performs a single HTTP request. Failures are always a
// *TransportError carrying the measured latency; timeouts are
// distinguished from other network failures by IsTimeout.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		te := &TransportError{Message: err.Error()}
		observeRequest(req.Method, 0, 0, false)
		return nil, te
	}

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	} else if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	switch {
	case req.Authorization != "":
		httpReq.Header.Set("Authorization", req.Authorization)
	case c.auth.Token() != "":
		httpReq.Header.Set("Authorization", "Bearer "+c.auth.Token())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	latency := time.Since(start)

	if err != nil {
		te := &TransportError{
			IsTimeout: isTimeout(ctx, err),
			Message:   err.Error(),
			Latency:   latency,
		}
		observeRequest(req.Method, 0, latency.Seconds(), te.IsTimeout)
		return nil, te
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		te := &TransportError{
			IsTimeout: isTimeout(ctx, readErr),
			Message:   readErr.Error(),
			Latency:   time.Since(start),
		}
		observeRequest(req.Method, 0, te.Latency.Seconds(), te.IsTimeout)
		return nil, te
	}
	latency = time.Since(start)
	observeRequest(req.Method, resp.StatusCode, latency.Seconds(), false)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, body),
			Latency: latency,
		}
	}

	out := &Response{Status: resp.StatusCode, Latency: latency}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		out.Data = json.RawMessage("null")
	} else if json.Valid(body) {
		out.Data = json.RawMessage(body)
	} else {
		// Malformed bodies are a data-shape concern, not a transport fault.
		out.Raw = string(body)
	}
	return out, nil
}

// errorMessage extracts the most useful message from an error body:
// structured message/detail/error fields, then raw body, then the status.
func errorMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && json.Valid(body) {
		var envelope struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
			Err     string `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil {
			for _, candidate := range []string{envelope.Message, envelope.Detail, envelope.Err} {
				if strings.TrimSpace(candidate) != "" {
					return strings.TrimSpace(candidate)
				}
			}
		}
	}
	if trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("HTTP %d", status)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
