package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

func sampleAnalysis(ticker, weekStart string) *models.WeeklyAnalysis {
	return &models.WeeklyAnalysis{
		ID:                 "wa_" + ticker,
		Ticker:             ticker,
		WeekStart:          weekStart,
		PredictedDirection: models.PredictionUp,
		ConfidenceScore:    72,
		ConfidenceLevel:    models.ConfidenceHigh,
		SummaryES:          "Semana con impulso alcista por resultados.",
		GeneratedAt:        time.Now().UTC(),
	}
}

func TestFormatWeekRange(t *testing.T) {
	got := formatWeekRange("2026-01-12")
	want := "12 de enero de 2026 — 16 de enero de 2026"
	if got != want {
		t.Errorf("formatWeekRange() = %q, want %q", got, want)
	}

	// Unparseable input falls back to the raw string.
	if got := formatWeekRange("not-a-date"); got != "not-a-date" {
		t.Errorf("formatWeekRange fallback = %q", got)
	}
}

func TestDirectionLabels(t *testing.T) {
	tests := []struct {
		direction string
		label     string
		color     string
	}{
		{models.PredictionUp, "↑ Alcista", "#22C55E"},
		{models.PredictionDown, "↓ Bajista", "#EF4444"},
		{models.PredictionSideways, "→ Lateral", "#F59E0B"},
		{"", "— Sin datos", "#F59E0B"},
	}

	for _, tt := range tests {
		if got := directionLabel(tt.direction); got != tt.label {
			t.Errorf("directionLabel(%q) = %q, want %q", tt.direction, got, tt.label)
		}
		if got := directionColor(tt.direction); got != tt.color {
			t.Errorf("directionColor(%q) = %q, want %q", tt.direction, got, tt.color)
		}
	}
}

func TestBuildWeeklyReportEmail(t *testing.T) {
	weekStart := "2026-01-12"
	analyses := []*models.WeeklyAnalysis{
		sampleAnalysis("AAPL", weekStart),
		{
			Ticker:             "TSLA",
			WeekStart:          weekStart,
			PredictedDirection: models.PredictionDown,
			ConfidenceScore:    35,
			ConfidenceLevel:    models.ConfidenceLow,
		},
	}

	subject, htmlBody, textBody := BuildWeeklyReportEmail(weekStart, analyses)

	if subject != "Tu reporte semanal de Trading Spot — Semana del 2026-01-12" {
		t.Errorf("subject = %q", subject)
	}

	for _, want := range []string{
		"Trading Spot",
		"12 de enero de 2026 — 16 de enero de 2026",
		"los 2 tickers en tu watchlist",
		"AAPL",
		"↑ Alcista",
		"Confianza Alta · 72%",
		"Semana con impulso alcista por resultados.",
		"TSLA",
		"↓ Bajista",
		"Confianza Baja · 35%",
		"Sin resumen disponible.",
		"Ver dashboard completo",
	} {
		if !strings.Contains(htmlBody, want) {
			t.Errorf("html missing %q", want)
		}
	}

	for _, want := range []string{"AAPL", "↑ Alcista", "Confianza Alta, 72%", dashboardURL} {
		if !strings.Contains(textBody, want) {
			t.Errorf("text missing %q", want)
		}
	}
}

func TestBuildWeeklyReportEmailSingular(t *testing.T) {
	_, htmlBody, _ := BuildWeeklyReportEmail("2026-01-12", []*models.WeeklyAnalysis{
		sampleAnalysis("AAPL", "2026-01-12"),
	})

	if !strings.Contains(htmlBody, "los 1 ticker en tu watchlist") {
		t.Error("expected singular ticker phrasing")
	}
	if strings.Contains(htmlBody, "1 tickers") {
		t.Error("unexpected plural for single ticker")
	}
}

func TestBuildWeeklyReportEmailEscapesSummary(t *testing.T) {
	a := sampleAnalysis("AAPL", "2026-01-12")
	a.SummaryES = `<script>alert("x")</script>`

	_, htmlBody, _ := BuildWeeklyReportEmail("2026-01-12", []*models.WeeklyAnalysis{a})

	if strings.Contains(htmlBody, "<script>") {
		t.Error("summary was not HTML-escaped")
	}
	if !strings.Contains(htmlBody, "&lt;script&gt;") {
		t.Error("expected escaped summary in html")
	}
}

// ---------------------------------------------------------------------
// SendWeeklyReports
// ---------------------------------------------------------------------

type memKV struct {
	values map[string]string
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[strings.ToLower(key)]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(ctx context.Context, key, value, description string) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[strings.ToLower(key)] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	delete(m.values, strings.ToLower(key))
	return nil
}

func (m *memKV) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	return nil, nil
}

type fakeWatchlist struct {
	users   []string
	entries map[string][]*models.WatchlistEntry
}

func (f *fakeWatchlist) Add(entry *models.WatchlistEntry) error { return nil }
func (f *fakeWatchlist) Remove(userID, ticker string) error     { return nil }

func (f *fakeWatchlist) ListByUser(userID string) ([]*models.WatchlistEntry, error) {
	return f.entries[userID], nil
}

func (f *fakeWatchlist) AllTickers() ([]string, error) { return nil, nil }
func (f *fakeWatchlist) AllUsers() ([]string, error)   { return f.users, nil }

type fakeAnalyses struct {
	byTicker map[string]*models.WeeklyAnalysis
}

func (f *fakeAnalyses) Upsert(analysis *models.WeeklyAnalysis) error { return nil }

func (f *fakeAnalyses) GetByTickerWeek(ticker, weekStart string) (*models.WeeklyAnalysis, error) {
	return nil, interfaces.ErrNotFound
}

func (f *fakeAnalyses) ListByWeek(weekStart string) ([]*models.WeeklyAnalysis, error) {
	return nil, nil
}

func (f *fakeAnalyses) ListByTickersWeek(tickers []string, weekStart string) ([]*models.WeeklyAnalysis, error) {
	var out []*models.WeeklyAnalysis
	for _, ticker := range tickers {
		if a, ok := f.byTicker[ticker]; ok && a.WeekStart == weekStart {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnalyses) Count() (int, error) { return len(f.byTicker), nil }

type fakeManager struct {
	analyses  *fakeAnalyses
	watchlist *fakeWatchlist
	kv        *memKV
}

func (f *fakeManager) AnalysisStorage() interfaces.AnalysisStorage   { return f.analyses }
func (f *fakeManager) RunStorage() interfaces.RunStorage             { return nil }
func (f *fakeManager) WatchlistStorage() interfaces.WatchlistStorage { return f.watchlist }
func (f *fakeManager) KeyValueStorage() interfaces.KeyValueStorage   { return f.kv }
func (f *fakeManager) Close() error                                  { return nil }

func configuredKV() *memKV {
	return &memKV{values: map[string]string{
		"smtp_host":     "smtp.example.com",
		"smtp_username": "reports@example.com",
		"smtp_password": "secret",
		"smtp_from":     "reports@example.com",
	}}
}

func watchlistEntry(userID, ticker string) *models.WatchlistEntry {
	return &models.WatchlistEntry{
		ID:      "wl_" + userID + "_" + ticker,
		UserID:  userID,
		Ticker:  ticker,
		AddedAt: time.Now().UTC(),
	}
}

func TestSendWeeklyReports(t *testing.T) {
	weekStart := common.WeekStart(time.Now().UTC()).Format(common.DateFormat)

	storage := &fakeManager{
		analyses: &fakeAnalyses{byTicker: map[string]*models.WeeklyAnalysis{
			"AAPL": sampleAnalysis("AAPL", weekStart),
		}},
		watchlist: &fakeWatchlist{
			users: []string{"alice@example.com", "bob@example.com", "not-an-email", "carol@example.com"},
			entries: map[string][]*models.WatchlistEntry{
				"alice@example.com": {watchlistEntry("alice@example.com", "AAPL")},
				"bob@example.com":   {watchlistEntry("bob@example.com", "ZZZZ")},
				"carol@example.com": {watchlistEntry("carol@example.com", "AAPL")},
			},
		},
		kv: configuredKV(),
	}

	var sentTo []string
	svc := NewService(storage.kv, arbor.NewLogger())
	svc.send = func(ctx context.Context, to, subject, htmlBody, textBody string) error {
		if to == "carol@example.com" {
			return errors.New("mailbox full")
		}
		sentTo = append(sentTo, to)
		if !strings.Contains(subject, weekStart) {
			t.Errorf("subject missing week start: %q", subject)
		}
		return nil
	}

	stats, err := svc.SendWeeklyReports(context.Background(), storage)
	if err != nil {
		t.Fatalf("SendWeeklyReports() error = %v", err)
	}

	// alice: sent. bob: watchlist has no analyses this week, skipped.
	// not-an-email: skipped. carol: send error, failed.
	if stats.Sent != 1 || stats.Failed != 1 || stats.Skipped != 2 {
		t.Errorf("stats = %+v, want sent=1 failed=1 skipped=2", stats)
	}

	if len(sentTo) != 1 || sentTo[0] != "alice@example.com" {
		t.Errorf("sentTo = %v", sentTo)
	}
}

func TestSendWeeklyReportsUnconfigured(t *testing.T) {
	storage := &fakeManager{
		analyses:  &fakeAnalyses{},
		watchlist: &fakeWatchlist{users: []string{"alice@example.com", "bob@example.com"}},
		kv:        &memKV{},
	}

	svc := NewService(storage.kv, arbor.NewLogger())
	called := false
	svc.send = func(ctx context.Context, to, subject, htmlBody, textBody string) error {
		called = true
		return nil
	}

	stats, err := svc.SendWeeklyReports(context.Background(), storage)
	if err != nil {
		t.Fatalf("SendWeeklyReports() error = %v", err)
	}

	if called {
		t.Error("send should not be called when SMTP is unconfigured")
	}
	if stats.Skipped != 2 || stats.Sent != 0 {
		t.Errorf("stats = %+v, want all skipped", stats)
	}
}

func TestSendWeeklyReportsNoUsers(t *testing.T) {
	storage := &fakeManager{
		analyses:  &fakeAnalyses{},
		watchlist: &fakeWatchlist{},
		kv:        configuredKV(),
	}

	svc := NewService(storage.kv, arbor.NewLogger())
	stats, err := svc.SendWeeklyReports(context.Background(), storage)
	if err != nil {
		t.Fatalf("SendWeeklyReports() error = %v", err)
	}
	if stats.Sent != 0 || stats.Failed != 0 || stats.Skipped != 0 {
		t.Errorf("stats = %+v, want all zero", stats)
	}
}

func TestGetConfigDefaults(t *testing.T) {
	svc := NewService(&memKV{}, arbor.NewLogger())

	cfg, err := svc.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}

	if cfg.Port != 587 {
		t.Errorf("default port = %d, want 587", cfg.Port)
	}
	if !cfg.UseTLS {
		t.Error("default UseTLS should be true")
	}
	if cfg.FromName != "Semana" {
		t.Errorf("default from name = %q", cfg.FromName)
	}
}

func TestIsConfigured(t *testing.T) {
	if NewService(&memKV{}, arbor.NewLogger()).IsConfigured(context.Background()) {
		t.Error("empty config should not be configured")
	}
	if !NewService(configuredKV(), arbor.NewLogger()).IsConfigured(context.Background()) {
		t.Error("complete config should be configured")
	}
}

func TestEncodeBase64WithLineBreaks(t *testing.T) {
	content := strings.Repeat("semana weekly report ", 20)
	encoded := encodeBase64WithLineBreaks(content)

	for _, line := range strings.Split(encoded, "\r\n") {
		if len(line) > 76 {
			t.Errorf("line exceeds 76 chars: %d", len(line))
		}
	}
}
