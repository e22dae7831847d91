// Package client provides a typed HTTP client for the custodian registry API.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodian-sh/custodian/internal/retry"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer from the registry.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Message)
}

// Client manages communication with a custodian registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	retryConf  retry.Config
}

// NewClient creates a client for the registry at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryConf: retry.DefaultConfig(),
	}
}

// NewClientWithTLS creates a client that talks TLS to the registry.
func NewClientWithTLS(baseURL string, tlsConfig *tls.Config) *Client {
	c := NewClient(baseURL)
	c.httpClient.Transport = &http.Transport{
		TLSClientConfig: tlsConfig,
	}
	return c
}

// SetAPIKey sets the API key sent as a bearer token.
func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = apiKey
}

// SetTimeout overrides the default request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetRetryConfig overrides the backoff applied to read requests.
func (c *Client) SetRetryConfig(conf retry.Config) {
	c.retryConf = conf
}

func (c *Client) addAuthHeader(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// doJSON performs one request and decodes the response into out when out is
// non-nil. A response with an unexpected status becomes an *APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := strings.TrimSpace(string(raw))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

// getJSON performs a GET, retrying transient transport failures. Errors the
// registry answered deliberately, such as a 400 or 403, are returned as is.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	var terminal error
	err := retry.Do(ctx, c.retryConf, func() error {
		err := c.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, out)
		if err != nil && !retry.IsRetryable(err) {
			terminal = err
			return nil
		}
		return err
	})
	if terminal != nil {
		return terminal
	}
	return err
}
