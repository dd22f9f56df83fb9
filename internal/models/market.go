package models

// NewsArticle represents a single news item from the financial data API.
// Immutable once fetched.
type NewsArticle struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Datetime int64  `json:"datetime"` // unix timestamp (seconds)
	Date     string `json:"date"`     // YYYY-MM-DD derived from Datetime
}

// BasicFinancials holds key financial metrics for a ticker.
// Every field is independently nullable: an absent metric does not
// invalidate the snapshot.
type BasicFinancials struct {
	PERatio              *float64 `json:"pe_ratio"`
	EPS                  *float64 `json:"eps"`
	MarketCapitalization *float64 `json:"market_capitalization"` // in millions USD
	Week52High           *float64 `json:"week_52_high"`
	Week52Low            *float64 `json:"week_52_low"`
	RevenueGrowthYoY     *float64 `json:"revenue_growth_yoy"` // % YoY revenue growth
	GrossMargin          *float64 `json:"gross_margin"`       // % gross margin TTM
}

// EarningsSnapshot holds forward and trailing earnings data for a ticker.
// Fields are independently nullable.
type EarningsSnapshot struct {
	NextEarningsDate *string  `json:"next_earnings_date"` // YYYY-MM-DD
	LastSurprisePct  *float64 `json:"last_surprise_pct"`  // % surprise vs estimate
	LastActualEPS    *float64 `json:"last_actual_eps"`
	LastEstimateEPS  *float64 `json:"last_estimate_eps"`
	LastPeriod       *string  `json:"last_period"` // e.g. "2025-06-30"
}

// PriceData is the output of the market data fetcher: current close,
// the oldest close in a 10-trading-day lookback, and the change between
// them as a percentage rounded to 2 decimals.
type PriceData struct {
	CurrentPrice   float64 `json:"current_price"`
	PriceWeekAgo   float64 `json:"price_week_ago"`
	PriceChangePct float64 `json:"price_change_pct"`
}

// TickerContext is the fused per-ticker input handed to the prompt
// compiler. Built by one context-builder invocation and discarded after
// the analyzer consumes it.
type TickerContext struct {
	Ticker    string `json:"ticker"`
	WeekStart string `json:"week_start"` // YYYY-MM-DD (Monday)
	WeekEnd   string `json:"week_end"`   // YYYY-MM-DD (Friday)

	CurrentPrice   float64 `json:"current_price"`
	PriceWeekAgo   float64 `json:"price_week_ago"`
	PriceChangePct float64 `json:"price_change_pct"`

	CompanyNews []NewsArticle `json:"company_news"`
	MarketNews  []NewsArticle `json:"market_news"`

	Financials BasicFinancials  `json:"financials"`
	Earnings   EarningsSnapshot `json:"earnings"`
}
