package gpv2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Orderbook API endpoints
const (
	ordersEndpoint = "/api/v1/orders"
	quoteEndpoint  = "/api/v1/quote"
)

// DefaultHTTPTimeout is the request timeout of clients created without an http.Client
const DefaultHTTPTimeout = 30 * time.Second

// APIClient handles HTTP requests to the orderbook API
type APIClient struct {
	host    string
	client  *http.Client
	limiter *rate.Limiter
}

// NewAPIClient creates a new API client. A nil httpClient gets a client
// with DefaultHTTPTimeout.
func NewAPIClient(host string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultHTTPTimeout,
		}
	}
	return &APIClient{
		host:   host,
		client: httpClient,
	}
}

// WithRateLimit throttles requests to limit per second with the given burst.
// A non-positive limit leaves the client unthrottled.
func (c *APIClient) WithRateLimit(limit rate.Limit, burst int) *APIClient {
	if limit <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(limit, burst)
	return c
}

// Host returns the orderbook base URL
func (c *APIClient) Host() string {
	return c.host
}

// doRequest performs an HTTP request
func (c *APIClient) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	url := fmt.Sprintf("%s%s", c.host, endpoint)
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
}

// decodeJSONResponse reads the response body, checks HTTP status, and decodes JSON
func (c *APIClient) decodeJSONResponse(resp *http.Response, result interface{}) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &OrderbookError{StatusCode: resp.StatusCode}
		var body errorResponse
		if err := json.Unmarshal(bodyBytes, &body); err == nil {
			apiErr.ErrorType = body.ErrorType
			apiErr.Description = body.Description
		}
		if apiErr.Description == "" && apiErr.ErrorType == "" {
			apiErr.Description = resp.Status
		}
		return apiErr
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		// If JSON decode fails, include the body in the error for debugging
		bodyStr := string(bodyBytes)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		return fmt.Errorf("failed to decode JSON response: %w (body: %s)", err, bodyStr)
	}

	return nil
}

// SubmitOrder posts a signed order and returns the UID assigned by the orderbook
func (c *APIClient) SubmitOrder(ctx context.Context, order *OrderCreation) (OrderUID, error) {
	if order == nil {
		return "", &InvalidParamError{Message: "order is required"}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, ordersEndpoint, order)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var uid OrderUID
	if err := c.decodeJSONResponse(resp, &uid); err != nil {
		return "", err
	}

	return uid, nil
}

// FetchQuote requests a price and fee estimate for a partial order
func (c *APIClient) FetchQuote(ctx context.Context, quote *QuoteRequest) (*Quote, error) {
	if quote == nil {
		return nil, &InvalidParamError{Message: "quote request is required"}
	}
	if err := quote.validate(); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, quoteEndpoint, quote)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result quoteResponse
	if err := c.decodeJSONResponse(resp, &result); err != nil {
		return nil, err
	}

	return result.toQuote()
}

// GetOrder fetches an order by UID
func (c *APIClient) GetOrder(ctx context.Context, uid OrderUID) (*OrderStatus, error) {
	if uid == "" {
		return nil, &InvalidParamError{Message: "order uid is required"}
	}

	endpoint := fmt.Sprintf("%s/%s", ordersEndpoint, uid)
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result OrderStatus
	if err := c.decodeJSONResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
