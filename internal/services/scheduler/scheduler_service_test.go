package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
	"github.com/ternarybob/semana/internal/services/mailer"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	tickers []string
	result  *models.RunResult
	err     error
	block   chan struct{} // when set, Run waits until closed
}

func (f *fakeRunner) Run(ctx context.Context, tickers []string) (*models.RunResult, error) {
	f.mu.Lock()
	f.calls++
	f.tickers = tickers
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.result, f.err
}

type fakeReports struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (f *fakeReports) SendWeeklyReports(ctx context.Context, storage interfaces.StorageManager) (*mailer.ReportStats, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return &mailer.ReportStats{Sent: 1}, nil
}

func (f *fakeReports) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeWatchlist struct {
	tickers []string
	err     error
}

func (f *fakeWatchlist) Add(entry *models.WatchlistEntry) error { return nil }
func (f *fakeWatchlist) Remove(userID, ticker string) error     { return nil }
func (f *fakeWatchlist) ListByUser(userID string) ([]*models.WatchlistEntry, error) {
	return nil, nil
}
func (f *fakeWatchlist) AllTickers() ([]string, error) { return f.tickers, f.err }
func (f *fakeWatchlist) AllUsers() ([]string, error)   { return nil, nil }

type fakeManager struct {
	watchlist *fakeWatchlist
}

func (f *fakeManager) AnalysisStorage() interfaces.AnalysisStorage   { return nil }
func (f *fakeManager) RunStorage() interfaces.RunStorage             { return nil }
func (f *fakeManager) WatchlistStorage() interfaces.WatchlistStorage { return f.watchlist }
func (f *fakeManager) KeyValueStorage() interfaces.KeyValueStorage   { return nil }
func (f *fakeManager) Close() error                                  { return nil }

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Scheduler.Enabled = true
	cfg.Mailer.Enabled = true
	return cfg
}

func newTestService(runner *fakeRunner, reports *fakeReports, tickers []string) *Service {
	return NewService(
		runner,
		reports,
		&fakeManager{watchlist: &fakeWatchlist{tickers: tickers}},
		testConfig(),
		arbor.NewLogger(),
	)
}

func TestRunAnalysisPassesWatchedTickers(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{Successful: 2}}
	reports := &fakeReports{done: make(chan struct{})}
	svc := newTestService(runner, reports, []string{"AAPL", "TSLA"})

	result, err := svc.RunAnalysis(context.Background())
	if err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}

	if result.Successful != 2 {
		t.Errorf("Successful = %d, want 2", result.Successful)
	}
	if len(runner.tickers) != 2 || runner.tickers[0] != "AAPL" {
		t.Errorf("runner tickers = %v", runner.tickers)
	}

	// Report dispatch runs in the background.
	select {
	case <-reports.done:
	case <-time.After(2 * time.Second):
		t.Fatal("report dispatch was not triggered")
	}
}

func TestRunAnalysisNoTickers(t *testing.T) {
	runner := &fakeRunner{}
	reports := &fakeReports{}
	svc := newTestService(runner, reports, nil)

	result, err := svc.RunAnalysis(context.Background())
	if err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}

	if result.Successful != 0 {
		t.Errorf("Successful = %d, want 0", result.Successful)
	}
	if runner.calls != 0 {
		t.Error("runner should not be called with an empty watchlist")
	}
	if reports.callCount() != 0 {
		t.Error("reports should not be sent with an empty watchlist")
	}
}

func TestRunAnalysisNoReportsWithoutSuccesses(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{Failed: 2}}
	reports := &fakeReports{}
	svc := newTestService(runner, reports, []string{"AAPL", "TSLA"})

	if _, err := svc.RunAnalysis(context.Background()); err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}

	// Give any stray goroutine a moment before asserting.
	time.Sleep(50 * time.Millisecond)
	if reports.callCount() != 0 {
		t.Error("reports should not be sent when no analyses succeeded")
	}
}

func TestRunAnalysisNoReportsWhenMailerDisabled(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{Successful: 1}}
	reports := &fakeReports{}
	svc := newTestService(runner, reports, []string{"AAPL"})
	svc.cfg.Mailer.Enabled = false

	if _, err := svc.RunAnalysis(context.Background()); err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if reports.callCount() != 0 {
		t.Error("reports should not be sent when mailer is disabled")
	}
}

func TestRunAnalysisRejectsOverlap(t *testing.T) {
	block := make(chan struct{})
	runner := &fakeRunner{result: &models.RunResult{}, block: block}
	svc := newTestService(runner, &fakeReports{}, []string{"AAPL"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.RunAnalysis(context.Background())
	}()

	// Wait for the first run to enter the runner.
	deadline := time.After(2 * time.Second)
	for {
		runner.mu.Lock()
		started := runner.calls > 0
		runner.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first run never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := svc.RunAnalysis(context.Background()); err == nil {
		t.Error("expected overlap rejection while a run is in progress")
	}

	close(block)
	wg.Wait()

	// A fresh run after completion is accepted again.
	runner.block = nil
	if _, err := svc.RunAnalysis(context.Background()); err != nil {
		t.Errorf("RunAnalysis() after completion error = %v", err)
	}
}

func TestRunAnalysisRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("audit record insert failed")}
	reports := &fakeReports{}
	svc := newTestService(runner, reports, []string{"AAPL"})

	if _, err := svc.RunAnalysis(context.Background()); err == nil {
		t.Fatal("expected error from failing runner")
	}

	status := svc.Status()
	if status.LastError == "" {
		t.Error("status should record the last error")
	}
	if reports.callCount() != 0 {
		t.Error("reports should not be sent after a failed run")
	}
}

func TestStartStop(t *testing.T) {
	svc := newTestService(&fakeRunner{result: &models.RunResult{}}, &fakeReports{}, nil)

	if err := svc.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !svc.IsRunning() {
		t.Error("scheduler should be running after Start")
	}
	if err := svc.Start(); err == nil {
		t.Error("second Start should fail")
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if svc.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
}

func TestStartDisabled(t *testing.T) {
	svc := newTestService(&fakeRunner{}, &fakeReports{}, nil)
	svc.cfg.Scheduler.Enabled = false

	if err := svc.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if svc.IsRunning() {
		t.Error("disabled scheduler should not report running")
	}
}

func TestStartInvalidSchedule(t *testing.T) {
	svc := newTestService(&fakeRunner{}, &fakeReports{}, nil)
	svc.cfg.Scheduler.Schedule = "not a cron expression"

	if err := svc.Start(); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
