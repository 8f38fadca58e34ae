package reeadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://apidatos.ree.es"
	balancePath        = "/es/datos/balance/balance-electrico"
	requestDateLayout  = "2006-01-02T15:04"
	defaultHTTPTimeout = 30 * time.Second
)

// StatusError reports a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("reeadapter: http %d", e.StatusCode)
}

// Client is a minimal REE apidatos REST client.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// NewClient constructs an apidatos client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FetchBalance retrieves the electric balance for a date range at the given
// time truncation (hour, day, month or year). Transport failures surface as
// wrapped errors; non-2xx responses surface as *StatusError.
func (c *Client) FetchBalance(ctx context.Context, start, end time.Time, trunc string) (*BalanceResponse, error) {
	if trunc == "" {
		return nil, errors.New("reeadapter: empty time trunc")
	}
	if end.Before(start) {
		return nil, errors.New("reeadapter: end before start")
	}

	query := url.Values{}
	query.Set("start_date", start.Format(requestDateLayout))
	query.Set("end_date", end.Format(requestDateLayout))
	query.Set("time_trunc", trunc)

	var payload BalanceResponse
	if err := c.doJSON(ctx, balancePath+"?"+query.Encode(), &payload); err != nil {
		return nil, err
	}
	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("reeadapter: api error: %s", payload.Errors[0].Detail)
	}
	return &payload, nil
}

func (c *Client) doJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reeadapter: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("reeadapter: decode failed: %w", err)
	}
	return nil
}
