package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the Yahoo Finance chart API.
	DefaultBaseURL = "https://query2.finance.yahoo.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second

	// chartRange covers two calendar weeks of trading days, enough to
	// always capture the close from roughly one week ago.
	chartRange = "10d"
)

// Client retrieves daily price data from the chart API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new chart API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetWeeklyPrice fetches recent daily closes for a ticker and derives
// the current price, the price from a week ago, and the percentage
// change between them. Null closes (holidays, halts) are skipped; at
// least two valid closes are required.
func (c *Client) GetWeeklyPrice(ctx context.Context, ticker string) (*models.PriceData, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", chartRange)

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; semana/1.0)")

	if c.logger != nil {
		c.logger.Debug().
			Str("ticker", ticker).
			Msg("Chart API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Ticker: ticker}
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", ticker, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &InsufficientDataError{Ticker: ticker}
	}

	closes := payload.Chart.Result[0].Indicators.Quote[0].Close

	valid := make([]float64, 0, len(closes))
	for _, close := range closes {
		if close != nil {
			valid = append(valid, *close)
		}
	}

	if len(valid) < 2 {
		return nil, &InsufficientDataError{Ticker: ticker, ValidCloses: len(valid)}
	}

	current := valid[len(valid)-1]
	weekAgo := valid[0]
	pctChange := math.Round(((current-weekAgo)/weekAgo)*100*100) / 100

	return &models.PriceData{
		CurrentPrice:   current,
		PriceWeekAgo:   weekAgo,
		PriceChangePct: pctChange,
	}, nil
}
