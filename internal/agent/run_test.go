package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

// In-memory storage fakes.

type memAnalysisStorage struct {
	records   map[string]*models.WeeklyAnalysis
	upsertErr error
}

func newMemAnalysisStorage() *memAnalysisStorage {
	return &memAnalysisStorage{records: make(map[string]*models.WeeklyAnalysis)}
}

func (m *memAnalysisStorage) Upsert(a *models.WeeklyAnalysis) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.records[a.Key()] = a
	return nil
}

func (m *memAnalysisStorage) GetByTickerWeek(ticker, weekStart string) (*models.WeeklyAnalysis, error) {
	if a, ok := m.records[models.AnalysisKey(ticker, weekStart)]; ok {
		return a, nil
	}
	return nil, interfaces.ErrNotFound
}

func (m *memAnalysisStorage) ListByWeek(weekStart string) ([]*models.WeeklyAnalysis, error) {
	var out []*models.WeeklyAnalysis
	for _, a := range m.records {
		if a.WeekStart == weekStart {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAnalysisStorage) ListByTickersWeek(tickers []string, weekStart string) ([]*models.WeeklyAnalysis, error) {
	var out []*models.WeeklyAnalysis
	for _, t := range tickers {
		if a, ok := m.records[models.AnalysisKey(t, weekStart)]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAnalysisStorage) Count() (int, error) {
	return len(m.records), nil
}

type memRunStorage struct {
	runs      map[string]*models.AnalysisRun
	insertErr error
	updateErr error
}

func newMemRunStorage() *memRunStorage {
	return &memRunStorage{runs: make(map[string]*models.AnalysisRun)}
}

func (m *memRunStorage) Insert(r *models.AnalysisRun) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	copied := *r
	m.runs[r.ID] = &copied
	return nil
}

func (m *memRunStorage) Update(r *models.AnalysisRun) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	copied := *r
	m.runs[r.ID] = &copied
	return nil
}

func (m *memRunStorage) Get(id string) (*models.AnalysisRun, error) {
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, interfaces.ErrNotFound
}

func (m *memRunStorage) List(limit int) ([]*models.AnalysisRun, error) {
	var out []*models.AnalysisRun
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRunStorage) single(t *testing.T) *models.AnalysisRun {
	t.Helper()
	if len(m.runs) != 1 {
		t.Fatalf("run records = %d, want 1", len(m.runs))
	}
	for _, r := range m.runs {
		return r
	}
	return nil
}

type fakeStorageManager struct {
	analyses *memAnalysisStorage
	runs     *memRunStorage
}

func newFakeStorage() *fakeStorageManager {
	return &fakeStorageManager{
		analyses: newMemAnalysisStorage(),
		runs:     newMemRunStorage(),
	}
}

func (f *fakeStorageManager) AnalysisStorage() interfaces.AnalysisStorage { return f.analyses }
func (f *fakeStorageManager) RunStorage() interfaces.RunStorage           { return f.runs }
func (f *fakeStorageManager) WatchlistStorage() interfaces.WatchlistStorage {
	return nil
}
func (f *fakeStorageManager) KeyValueStorage() interfaces.KeyValueStorage { return nil }
func (f *fakeStorageManager) Close() error                                { return nil }

// Pipeline fakes.

type fakeBuilder struct {
	errs       map[string]error
	calls      int
	marketNews []models.NewsArticle
}

func (f *fakeBuilder) Build(ctx context.Context, ticker, weekStart string, marketNews []models.NewsArticle) (*models.TickerContext, error) {
	f.calls++
	f.marketNews = marketNews
	if err := f.errs[ticker]; err != nil {
		return nil, err
	}
	return &models.TickerContext{
		Ticker:         ticker,
		WeekStart:      weekStart,
		WeekEnd:        common.WeekEnd(weekStart),
		CurrentPrice:   105,
		PriceWeekAgo:   100,
		PriceChangePct: 5.0,
		MarketNews:     marketNews,
	}, nil
}

type fakeAnalyzer struct {
	errs         map[string]error
	inputTokens  int64
	outputTokens int64
	calls        int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, tickerCtx *models.TickerContext) (*AnalyzerResult, error) {
	f.calls++
	if err := f.errs[tickerCtx.Ticker]; err != nil {
		return nil, err
	}
	return &AnalyzerResult{
		Analysis: &models.AgentAnalysis{
			Prediction: models.PredictionUp,
			Confidence: 65,
			Highlights: []string{"signal"},
		},
		InputTokens:  f.inputTokens,
		OutputTokens: f.outputTokens,
	}, nil
}

type fakeMarketNews struct {
	news  []models.NewsArticle
	err   error
	calls int
}

func (f *fakeMarketNews) GetMarketNews(ctx context.Context) ([]models.NewsArticle, error) {
	f.calls++
	return f.news, f.err
}

func testAgentConfig() *common.AgentConfig {
	return &common.AgentConfig{
		FreshnessDays:        3,
		PaceInterval:         "1ms",
		CostPerMInputTokens:  3,
		CostPerMOutputTokens: 15,
	}
}

func newOrchestratorUnderTest(storage *fakeStorageManager, builder *fakeBuilder, analyzer *fakeAnalyzer, news *fakeMarketNews) *Orchestrator {
	return NewOrchestrator(storage, builder, analyzer, news, testAgentConfig(), arbor.NewLogger())
}

func currentWeekStart() string {
	return common.WeekStart(time.Now()).Format(common.DateFormat)
}

func TestOrchestrator_CostAccounting(t *testing.T) {
	storage := newFakeStorage()
	analyzer := &fakeAnalyzer{inputTokens: 10000, outputTokens: 2000}
	o := newOrchestratorUnderTest(storage, &fakeBuilder{}, analyzer, &fakeMarketNews{})

	result, err := o.Run(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Successful != 1 {
		t.Errorf("Successful = %d, want 1", result.Successful)
	}

	run := storage.runs.single(t)
	if run.EstimatedCostUSD != 0.06 {
		t.Errorf("EstimatedCostUSD = %v, want 0.06", run.EstimatedCostUSD)
	}
	if run.InputTokens != 10000 || run.OutputTokens != 2000 {
		t.Errorf("tokens = %d/%d, want 10000/2000", run.InputTokens, run.OutputTokens)
	}
	if run.APICalls != 4 {
		t.Errorf("APICalls = %d, want 4", run.APICalls)
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt should be set after the run")
	}
}

func TestOrchestrator_FreshnessSkip(t *testing.T) {
	storage := newFakeStorage()
	weekStart := currentWeekStart()
	storage.analyses.records[models.AnalysisKey("AAPL", weekStart)] = &models.WeeklyAnalysis{
		Ticker:      "AAPL",
		WeekStart:   weekStart,
		GeneratedAt: time.Now().UTC().Add(-24 * time.Hour),
	}

	builder := &fakeBuilder{}
	analyzer := &fakeAnalyzer{}
	o := newOrchestratorUnderTest(storage, builder, analyzer, &fakeMarketNews{})

	result, err := o.Run(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Results[0].Status != models.RunStatusSkipped {
		t.Errorf("status = %q, want skipped", result.Results[0].Status)
	}
	if builder.calls != 0 {
		t.Errorf("builder calls = %d, want 0 (skip must issue no fetches)", builder.calls)
	}
	if analyzer.calls != 0 {
		t.Errorf("analyzer calls = %d, want 0", analyzer.calls)
	}
}

func TestOrchestrator_StaleAnalysisRegenerated(t *testing.T) {
	storage := newFakeStorage()
	weekStart := currentWeekStart()
	storage.analyses.records[models.AnalysisKey("AAPL", weekStart)] = &models.WeeklyAnalysis{
		Ticker:      "AAPL",
		WeekStart:   weekStart,
		GeneratedAt: time.Now().UTC().Add(-4 * 24 * time.Hour),
	}

	o := newOrchestratorUnderTest(storage, &fakeBuilder{}, &fakeAnalyzer{}, &fakeMarketNews{})

	result, err := o.Run(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Successful != 1 {
		t.Errorf("Successful = %d, want 1 (stale record must be regenerated)", result.Successful)
	}

	count, _ := storage.analyses.Count()
	if count != 1 {
		t.Errorf("record count = %d, want 1 (upsert must overwrite, not duplicate)", count)
	}
	refreshed, _ := storage.analyses.GetByTickerWeek("AAPL", weekStart)
	if time.Since(refreshed.GeneratedAt) > time.Minute {
		t.Error("GeneratedAt should be refreshed by the new run")
	}
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	storage := newFakeStorage()
	builder := &fakeBuilder{errs: map[string]error{
		"ZZZZINVALID": &PriceUnavailableError{Ticker: "ZZZZINVALID", Cause: errors.New("no data")},
	}}
	o := newOrchestratorUnderTest(storage, builder, &fakeAnalyzer{}, &fakeMarketNews{})

	result, err := o.Run(context.Background(), []string{"ZZZZINVALID", "AAPL"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Successful+result.Failed+result.Skipped != 2 {
		t.Errorf("counts sum = %d, want 2", result.Successful+result.Failed+result.Skipped)
	}
	if result.Results[0].Status != models.RunStatusError {
		t.Errorf("first status = %q, want error", result.Results[0].Status)
	}
	if result.Results[0].Reason == "" {
		t.Error("error result should carry a reason")
	}
	if result.Results[1].Status != models.RunStatusSuccess {
		t.Errorf("second status = %q, want success (failure must not leak across tickers)", result.Results[1].Status)
	}
}

func TestOrchestrator_AuditRecordFailureIsFatal(t *testing.T) {
	storage := newFakeStorage()
	storage.runs.insertErr = errors.New("store down")
	builder := &fakeBuilder{}
	news := &fakeMarketNews{}
	o := newOrchestratorUnderTest(storage, builder, &fakeAnalyzer{}, news)

	_, err := o.Run(context.Background(), []string{"AAPL"})
	if err == nil {
		t.Fatal("Run() should fail when the audit record cannot be created")
	}
	if news.calls != 0 || builder.calls != 0 {
		t.Error("no fetches should happen after a fatal setup failure")
	}
}

func TestOrchestrator_MarketNewsFailureTolerated(t *testing.T) {
	storage := newFakeStorage()
	builder := &fakeBuilder{}
	news := &fakeMarketNews{err: errors.New("macro feed down")}
	o := newOrchestratorUnderTest(storage, builder, &fakeAnalyzer{}, news)

	result, err := o.Run(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Successful != 1 {
		t.Errorf("Successful = %d, want 1 (macro news failure must degrade, not abort)", result.Successful)
	}
	if len(builder.marketNews) != 0 {
		t.Errorf("builder should receive empty macro context, got %d items", len(builder.marketNews))
	}
}

func TestOrchestrator_SharedMarketNewsFetchedOnce(t *testing.T) {
	storage := newFakeStorage()
	news := &fakeMarketNews{news: []models.NewsArticle{{Title: "macro", URL: "https://example.com"}}}
	o := newOrchestratorUnderTest(storage, &fakeBuilder{}, &fakeAnalyzer{}, news)

	if _, err := o.Run(context.Background(), []string{"AAPL", "MSFT", "NVDA"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if news.calls != 1 {
		t.Errorf("market news calls = %d, want 1 (fetched once per run)", news.calls)
	}
}

func TestOrchestrator_PersistFailureMarksError(t *testing.T) {
	storage := newFakeStorage()
	storage.analyses.upsertErr = errors.New("disk full")
	o := newOrchestratorUnderTest(storage, &fakeBuilder{}, &fakeAnalyzer{}, &fakeMarketNews{})

	result, err := o.Run(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if result.Results[0].Reason == "" {
		t.Error("persist failure should carry a reason")
	}
}

func TestOrchestrator_AnalyzerFailureMarksError(t *testing.T) {
	storage := newFakeStorage()
	analyzer := &fakeAnalyzer{errs: map[string]error{
		"AAPL": &MalformedOutputError{Snippet: "not json"},
	}}
	o := newOrchestratorUnderTest(storage, &fakeBuilder{}, analyzer, &fakeMarketNews{})

	result, err := o.Run(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}

	count, _ := storage.analyses.Count()
	if count != 0 {
		t.Errorf("no record should be persisted for a failed analysis, got %d", count)
	}
}
