package concierge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client sends requests to the hosted completion API.
type Client struct {
	// endpoint is the full URL of the completion endpoint. If the configured
	// URL does not already end with "/v1/completions" the suffix is appended,
	// so callers can pass either a base host or the full URL.
	endpoint   string
	apiKey     string
	httpClient *http.Client
	// streamTransport is used by streaming requests (no timeout, but same proxy).
	streamTransport http.RoundTripper
}

// NewClient constructs a Client with the given base URL (or full endpoint URL),
// optional bearer key, timeout for non-streaming calls, and optional proxy URL.
// proxyURL may be empty to use the default environment proxy.
func NewClient(baseURL, apiKey string, timeout time.Duration, proxyURL string) *Client {
	endpoint := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/v1/completions") {
		endpoint += "/v1/completions"
	}

	transport := &http.Transport{}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		streamTransport: transport,
	}
}

// StatusError reports a non-2xx response from the completion endpoint. The
// body is echoed for diagnostics but is never trusted as partial output.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %d: %s", e.StatusCode, e.Body)
}

// Ask sends a non-streaming completion request and returns the parsed reply.
func (c *Client) Ask(ctx context.Context, prompt string, grounded bool) (*Reply, error) {
	resp, err := c.post(ctx, c.httpClient, &CompletionRequest{
		Message: prompt,
		Stream:  false,
		Strict:  grounded,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &reply, nil
}

func (c *Client) post(ctx context.Context, client *http.Client, req *CompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(resp.Body)
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}
