package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the Finnhub API.
	DefaultBaseURL = "https://finnhub.io/api/v1"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is the default rate limit (requests per minute),
	// matching the free-tier allowance.
	DefaultRateLimit = 60

	// maxCompanyNews caps per-ticker headlines kept for analysis.
	maxCompanyNews = 15

	// maxMarketNews caps general market headlines kept for analysis.
	maxMarketNews = 10

	// earningsLookahead bounds the upcoming-earnings calendar query.
	earningsLookahead = 90 * 24 * time.Hour

	// companyNewsWindow is the trailing window for company headlines.
	companyNewsWindow = 7 * 24 * time.Hour
)

// Client is a Finnhub API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	now        func() time.Time
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

// WithRateLimit sets a custom rate limit in requests per minute.
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
	}
}

// WithClock overrides the clock used for date-windowed queries.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Finnhub API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultRateLimit), DefaultRateLimit),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request to the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{Endpoint: path}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("Finnhub API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetCompanyNews retrieves headlines for a ticker from the trailing
// seven days. Items without a headline or URL are dropped, and at most
// fifteen are returned, newest first as Finnhub orders them.
func (c *Client) GetCompanyNews(ctx context.Context, ticker string) ([]models.NewsArticle, error) {
	now := c.now()
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("from", now.Add(-companyNewsWindow).UTC().Format(common.DateFormat))
	params.Set("to", now.UTC().Format(common.DateFormat))

	var items []newsItem
	if err := c.get(ctx, "/company-news", params, &items); err != nil {
		return nil, err
	}

	return toArticles(items, maxCompanyNews), nil
}

// GetMarketNews retrieves general market headlines, capped at ten.
func (c *Client) GetMarketNews(ctx context.Context) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("category", "general")

	var items []newsItem
	if err := c.get(ctx, "/news", params, &items); err != nil {
		return nil, err
	}

	return toArticles(items, maxMarketNews), nil
}

func toArticles(items []newsItem, limit int) []models.NewsArticle {
	articles := make([]models.NewsArticle, 0, limit)
	for _, item := range items {
		if item.Headline == "" || item.URL == "" {
			continue
		}
		articles = append(articles, models.NewsArticle{
			Title:    item.Headline,
			Summary:  item.Summary,
			URL:      item.URL,
			Source:   item.Source,
			Datetime: item.Datetime,
			Date:     time.Unix(item.Datetime, 0).UTC().Format(common.DateFormat),
		})
		if len(articles) == limit {
			break
		}
	}
	return articles
}

// GetBasicFinancials retrieves valuation and margin metrics for a
// ticker. Finnhub exposes overlapping metric keys across plan tiers,
// so each field falls back through its known aliases.
func (c *Client) GetBasicFinancials(ctx context.Context, ticker string) (*models.BasicFinancials, error) {
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("metric", "all")

	var resp metricResponse
	if err := c.get(ctx, "/stock/metric", params, &resp); err != nil {
		return nil, err
	}

	return &models.BasicFinancials{
		PERatio:              pickMetric(resp.Metric, "peBasicExclExtraTTM", "peTTM"),
		EPS:                  pickMetric(resp.Metric, "epsBasicExclExtraAnnual", "epsTTM"),
		MarketCapitalization: pickMetric(resp.Metric, "marketCapitalization"),
		Week52High:           pickMetric(resp.Metric, "52WeekHigh"),
		Week52Low:            pickMetric(resp.Metric, "52WeekLow"),
		RevenueGrowthYoY:     pickMetric(resp.Metric, "revenueGrowthTTMYoy"),
		GrossMargin:          pickMetric(resp.Metric, "grossMarginTTM"),
	}, nil
}

// pickMetric returns the first key present with a numeric value.
func pickMetric(metrics map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		if raw, ok := metrics[key]; ok {
			if v, ok := raw.(float64); ok {
				return &v
			}
		}
	}
	return nil
}

// GetEarnings retrieves the earnings picture for a ticker: the next
// scheduled report date within ninety days and the most recent
// reported quarter. The two lookups are independent; a failure in one
// leaves its fields empty rather than failing the whole snapshot. An
// error is returned only when both lookups fail.
func (c *Client) GetEarnings(ctx context.Context, ticker string) (*models.EarningsSnapshot, error) {
	snapshot := &models.EarningsSnapshot{}
	now := c.now()

	calParams := url.Values{}
	calParams.Set("symbol", ticker)
	calParams.Set("from", now.UTC().Format(common.DateFormat))
	calParams.Set("to", now.Add(earningsLookahead).UTC().Format(common.DateFormat))

	var calendar earningsCalendarResponse
	calErr := c.get(ctx, "/calendar/earnings", calParams, &calendar)
	if calErr == nil && len(calendar.EarningsCalendar) > 0 {
		date := calendar.EarningsCalendar[0].Date
		snapshot.NextEarningsDate = &date
	} else if calErr != nil && c.logger != nil {
		c.logger.Warn().
			Str("ticker", ticker).
			Err(calErr).
			Msg("Earnings calendar lookup failed")
	}

	repParams := url.Values{}
	repParams.Set("symbol", ticker)

	var reports []earningsReport
	repErr := c.get(ctx, "/stock/earnings", repParams, &reports)
	if repErr == nil && len(reports) > 0 {
		latest := reports[0]
		snapshot.LastSurprisePct = latest.SurprisePercent
		snapshot.LastActualEPS = latest.Actual
		snapshot.LastEstimateEPS = latest.Estimate
		if latest.Period != "" {
			period := latest.Period
			snapshot.LastPeriod = &period
		}
	} else if repErr != nil && c.logger != nil {
		c.logger.Warn().
			Str("ticker", ticker).
			Err(repErr).
			Msg("Earnings history lookup failed")
	}

	if calErr != nil && repErr != nil {
		return nil, errors.Join(calErr, repErr)
	}

	return snapshot, nil
}
