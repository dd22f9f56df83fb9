// Package marketdata provides a client for the Yahoo Finance chart API.
// It retrieves recent daily closes and derives the week-over-week price
// change used by the analysis pipeline.
package marketdata

import "fmt"

// chartResponse mirrors the shape of the chart endpoint payload. Only
// the fields the price calculation needs are mapped.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// APIError represents a non-200 response from the chart endpoint.
type APIError struct {
	StatusCode int
	Ticker     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quote API error for %s (status: %d)", e.Ticker, e.StatusCode)
}

// InsufficientDataError indicates the chart returned fewer than two
// valid closes, so no week-over-week change can be computed.
type InsufficientDataError struct {
	Ticker      string
	ValidCloses int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient price data for %s: %d valid closes", e.Ticker, e.ValidCloses)
}
