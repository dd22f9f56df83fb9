// Package finnhub provides a client for the Finnhub stock API.
// This package centralizes all Finnhub interactions for the application:
// company news, general market news, fundamentals, and earnings.
package finnhub

import "fmt"

// APIError represents an error from the Finnhub API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Finnhub API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit wait being cut short, usually
// by context cancellation.
type RateLimitError struct {
	Endpoint string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Finnhub rate limit wait aborted (endpoint: %s)", e.Endpoint)
}

// newsItem mirrors the wire shape of both /company-news and /news.
type newsItem struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// metricResponse mirrors /stock/metric. Metric values are mixed types
// upstream, so they decode into a loose map and are picked over by key.
type metricResponse struct {
	Metric map[string]any `json:"metric"`
}

// earningsCalendarResponse mirrors /calendar/earnings.
type earningsCalendarResponse struct {
	EarningsCalendar []struct {
		Date   string `json:"date"`
		Symbol string `json:"symbol"`
	} `json:"earningsCalendar"`
}

// earningsReport mirrors one entry of /stock/earnings. Finnhub returns
// nulls for unreported quarters, hence the pointer fields.
type earningsReport struct {
	Actual          *float64 `json:"actual"`
	Estimate        *float64 `json:"estimate"`
	Period          string   `json:"period"`
	SurprisePercent *float64 `json:"surprisePercent"`
}
