package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/semana/internal/models"
)

// SystemPrompt is the system instruction sent with every analysis
// request. It restricts the model to raw JSON output.
const SystemPrompt = "You are an expert financial analyst. You respond ONLY with valid JSON matching the schema provided. No markdown, no explanations outside the JSON object."

const sectionRule = "═══════════════════════════════════════"

// maxSummaryChars truncates news summaries embedded in the prompt.
const maxSummaryChars = 200

// fmtMetric renders an optional metric with a fixed two-decimal form,
// or "N/A" when absent.
func fmtMetric(n *float64, prefix, suffix string) string {
	if n == nil {
		return "N/A"
	}
	return fmt.Sprintf("%s%.2f%s", prefix, *n, suffix)
}

// fmtPrice renders a required price value.
func fmtPrice(n float64) string {
	return fmt.Sprintf("$%.2f", n)
}

// fmtChange renders a percentage change with an explicit sign and
// minimal digits, e.g. "+5%", "-1.25%", "0%".
func fmtChange(pct float64) string {
	s := strconv.FormatFloat(pct, 'f', -1, 64)
	if pct > 0 {
		s = "+" + s
	}
	return s + "%"
}

// fmtNewsList renders an enumerated, labeled news section.
func fmtNewsList(articles []models.NewsArticle) string {
	if len(articles) == 0 {
		return "No news available."
	}

	entries := make([]string, 0, len(articles))
	for i, a := range articles {
		summary := "(no summary)"
		if a.Summary != "" {
			summary = a.Summary
			if runes := []rune(summary); len(runes) > maxSummaryChars {
				summary = string(runes[:maxSummaryChars]) + "..."
			}
		}
		entries = append(entries, fmt.Sprintf("[%d] %s\n    Source: %s | Date: %s\n    %s\n    URL: %s",
			i+1, a.Title, a.Source, a.Date, summary, a.URL))
	}
	return strings.Join(entries, "\n\n")
}

// fmtEarningsSection renders the earnings block, or "" when neither
// the calendar nor the last report produced data.
func fmtEarningsSection(e models.EarningsSnapshot) string {
	var lines []string
	if e.NextEarningsDate != nil {
		lines = append(lines, "Next earnings date: "+*e.NextEarningsDate)
	}
	if e.LastPeriod != nil && e.LastActualEPS != nil {
		lines = append(lines, fmt.Sprintf("Last earnings (%s): Actual EPS %s vs Estimate %s → Surprise %s",
			*e.LastPeriod,
			fmtMetric(e.LastActualEPS, "$", ""),
			fmtMetric(e.LastEstimateEPS, "$", ""),
			fmtMetric(e.LastSurprisePct, "", "%")))
	}
	return strings.Join(lines, "\n")
}

// BuildAnalysisPrompt renders a ticker context into the analysis
// instruction document. Pure and deterministic: identical input always
// yields an identical prompt.
func BuildAnalysisPrompt(ctx *models.TickerContext) string {
	f := ctx.Financials

	marketCap := "N/A"
	if f.MarketCapitalization != nil {
		billions := *f.MarketCapitalization / 1000
		marketCap = fmt.Sprintf("$%.2fB", billions)
	}

	earningsSection := ""
	if s := fmtEarningsSection(ctx.Earnings); s != "" {
		earningsSection = fmt.Sprintf("%s\nEARNINGS\n%s\n%s\n", sectionRule, sectionRule, s)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert financial analyst specializing in short-term (weekly) market predictions for equity and ETF traders.

ANALYSIS TARGET: %s
ANALYSIS WEEK: %s → %s (buy Monday, sell Friday)

%s
PRICE DATA
%s
Current Price:     %s
Price 1 Week Ago:  %s
Weekly Change:     %s
52-Week High:      %s
52-Week Low:       %s

%s
FINANCIAL METRICS
%s
P/E Ratio (TTM):   %s
EPS (TTM):         %s
Market Cap:        %s
Revenue Growth YoY:%s
Gross Margin TTM:  %s

%s
%s
COMPANY NEWS — Last 7 Days (%d articles)
%s
%s

%s
MARKET & MACRO CONTEXT (%d articles)
%s
%s

%s
YOUR TASK
%s
Based on ALL the above data, predict the price direction of %s for the week of %s to %s.
`,
		ctx.Ticker,
		ctx.WeekStart, ctx.WeekEnd,
		sectionRule, sectionRule,
		fmtPrice(ctx.CurrentPrice),
		fmtPrice(ctx.PriceWeekAgo),
		fmtChange(ctx.PriceChangePct),
		fmtMetric(f.Week52High, "$", ""),
		fmtMetric(f.Week52Low, "$", ""),
		sectionRule, sectionRule,
		fmtMetric(f.PERatio, "", "x"),
		fmtMetric(f.EPS, "$", ""),
		marketCap,
		fmtMetric(f.RevenueGrowthYoY, "", "%"),
		fmtMetric(f.GrossMargin, "", "%"),
		earningsSection,
		sectionRule, len(ctx.CompanyNews), sectionRule,
		fmtNewsList(ctx.CompanyNews),
		sectionRule, len(ctx.MarketNews), sectionRule,
		fmtNewsList(ctx.MarketNews),
		sectionRule, sectionRule,
		ctx.Ticker, ctx.WeekStart, ctx.WeekEnd,
	)

	b.WriteString(`
A weekly trader will:
- BUY on Monday morning at approximately the current price
- SELL on Friday afternoon
- Their goal is a 1-2% weekly gain

Respond with ONLY valid JSON — no markdown, no text outside the JSON object:

{
  "prediction": "up" | "down" | "sideways",
  "confidence": <integer 0-100>,
  "summary_es": "<2-3 paragraph executive summary in Spanish>",
  "summary_en": "<2-3 paragraph executive summary in English>",
  "highlights": [
    "<key factor 1 — max 15 words>",
    "<key factor 2 — max 15 words>",
    "<key factor 3 — max 15 words>",
    "<optional factor 4>",
    "<optional factor 5>"
  ],
  "reasoning_es": "<full detailed analysis in Spanish: explain your reasoning, key risks, what could invalidate this prediction, and what to watch during the week>",
  "reasoning_en": "<full detailed analysis in English: same depth as Spanish version>",
  "news_sources": [
    {"title": "...", "url": "...", "source": "...", "date": "YYYY-MM-DD"}
  ]
}

CONFIDENCE GUIDELINES:
- High (>70%): Multiple aligned signals, clear near-term catalyst, strong sector/market support
- Medium (40-70%): Mixed signals, moderate evidence, some uncertainty
- Low (<40%): Contradictory signals, insufficient data, high macro uncertainty

RULES:
- Be conservative: prefer Medium confidence unless signals are truly exceptional
- Always include at least 2 risks or counter-arguments in reasoning
- Only reference news_sources that actually influenced your analysis
- highlights must be factual, concise bullet points — no fluff
- "sideways" prediction = expected price movement < 0.5% in either direction`)

	return b.String()
}
