package agent

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/models"
)

// PriceSource supplies the mandatory price signal for a ticker.
type PriceSource interface {
	GetWeeklyPrice(ctx context.Context, ticker string) (*models.PriceData, error)
}

// FundamentalsSource supplies the non-critical data sources: news,
// metrics, and earnings. Any of these may fail without aborting
// context construction.
type FundamentalsSource interface {
	GetCompanyNews(ctx context.Context, ticker string) ([]models.NewsArticle, error)
	GetMarketNews(ctx context.Context) ([]models.NewsArticle, error)
	GetBasicFinancials(ctx context.Context, ticker string) (*models.BasicFinancials, error)
	GetEarnings(ctx context.Context, ticker string) (*models.EarningsSnapshot, error)
}

// ContextBuilder fuses all data sources into one per-ticker context.
type ContextBuilder struct {
	prices       PriceSource
	fundamentals FundamentalsSource
	logger       arbor.ILogger
}

// NewContextBuilder creates a context builder over the given sources.
func NewContextBuilder(prices PriceSource, fundamentals FundamentalsSource, logger arbor.ILogger) *ContextBuilder {
	return &ContextBuilder{
		prices:       prices,
		fundamentals: fundamentals,
		logger:       logger,
	}
}

// Build assembles the full context for a single ticker. The four
// source calls run concurrently and are all awaited before any result
// is inspected. Price failure aborts the build for this ticker only;
// company news, financials, and earnings failures are replaced with
// empty defaults. marketNews is fetched once per run by the
// orchestrator and shared across all tickers.
func (b *ContextBuilder) Build(ctx context.Context, ticker, weekStart string, marketNews []models.NewsArticle) (*models.TickerContext, error) {
	var (
		price      *models.PriceData
		priceErr   error
		news       []models.NewsArticle
		newsErr    error
		financials *models.BasicFinancials
		finErr     error
		earnings   *models.EarningsSnapshot
		earnErr    error
	)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		price, priceErr = b.prices.GetWeeklyPrice(ctx, ticker)
	}()
	go func() {
		defer wg.Done()
		news, newsErr = b.fundamentals.GetCompanyNews(ctx, ticker)
	}()
	go func() {
		defer wg.Done()
		financials, finErr = b.fundamentals.GetBasicFinancials(ctx, ticker)
	}()
	go func() {
		defer wg.Done()
		earnings, earnErr = b.fundamentals.GetEarnings(ctx, ticker)
	}()

	wg.Wait()

	if priceErr != nil {
		return nil, &PriceUnavailableError{Ticker: ticker, Cause: priceErr}
	}

	if newsErr != nil {
		b.logger.Warn().
			Str("ticker", ticker).
			Err(newsErr).
			Msg("Company news unavailable, continuing without")
		news = nil
	}
	if finErr != nil {
		b.logger.Warn().
			Str("ticker", ticker).
			Err(finErr).
			Msg("Financials unavailable, continuing without")
		financials = nil
	}
	if earnErr != nil {
		b.logger.Warn().
			Str("ticker", ticker).
			Err(earnErr).
			Msg("Earnings unavailable, continuing without")
		earnings = nil
	}

	tickerCtx := &models.TickerContext{
		Ticker:         ticker,
		WeekStart:      weekStart,
		WeekEnd:        common.WeekEnd(weekStart),
		CurrentPrice:   price.CurrentPrice,
		PriceWeekAgo:   price.PriceWeekAgo,
		PriceChangePct: price.PriceChangePct,
		CompanyNews:    news,
		MarketNews:     marketNews,
	}
	if financials != nil {
		tickerCtx.Financials = *financials
	}
	if earnings != nil {
		tickerCtx.Earnings = *earnings
	}

	return tickerCtx, nil
}
