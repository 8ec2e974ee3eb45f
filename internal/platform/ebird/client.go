package ebird

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the eBird API v2 root. Only tests point elsewhere.
const DefaultBaseURL = "https://api.ebird.org/v2"

const tokenHeader = "X-eBirdApiToken"

// Response is the raw upstream reply: status code and body bytes, untouched.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client issues authenticated GET calls against the eBird API.
// The API token travels in a request header only, never in the URL.
type Client interface {
	Get(ctx context.Context, path string, query url.Values) (*Response, error)
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("ebird: build request: %w", err)
	}
	req.Header.Set(tokenHeader, c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ebird: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ebird: read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
