package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Client issues authenticated JSON calls against the remote platform.
// It never retries and never lets a fault escape as anything but an error.
type Client struct {
	HTTPClient *http.Client
}

// NewClient builds a client whose transport routes through proxy.
func NewClient(proxy httpproxy.Config) *Client {
	proxyFunc := proxy.ProxyFunc()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
	return &Client{HTTPClient: &http.Client{Transport: transport}}
}

// Credential is sent both as a bearer token and as the platform API key header.
type Credential string

// Request describes one remote call.
type Request struct {
	// Stage names the pipeline step, carried into CallError.
	Stage      string
	URL        string
	Method     string
	Credential Credential
	Headers    map[string]string
	Body       any
	Timeout    time.Duration
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode parses the body as JSON into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CallError reports a failed call. StatusCode is 0 when no response arrived.
type CallError struct {
	Stage      string
	StatusCode int
	Err        error
}

func (e *CallError) Error() string { return e.Err.Error() }

func (e *CallError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *CallError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Call performs req and returns the response or a *CallError.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		var ce *CallError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &CallError{Stage: req.Stage, Err: err}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	reqBody, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+string(req.Credential))
		httpReq.Header.Set("apikey", string(req.Credential))
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{
			Stage:      req.Stage,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("http %d: %s", resp.StatusCode, snippet(body)),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
