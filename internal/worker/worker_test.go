package worker

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
	"finanzas/internal/events"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/sheets/memory"
	"finanzas/internal/storage"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.LedgerEvent
}

func (p *capturePublisher) Publish(_ context.Context, e events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

// drain returns and forgets the captured events.
func (p *capturePublisher) drain() []events.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

type stubAuditor struct {
	calls  atomic.Int32
	report services.Report
	err    error
}

func (a *stubAuditor) CheckTenant(_ context.Context, userID int64) (services.Report, error) {
	a.calls.Add(1)
	r := a.report
	r.UserID = userID
	return r, a.err
}

func testLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard, Component: log.ComponentWorker})
}

type fixture struct {
	repo    *storage.Repository
	pub     *capturePublisher
	ledger  *services.LedgerService
	envs    *services.EnvelopeService
	engine  *services.TransferEngine
	mirror  *memory.Store
	auditor *stubAuditor
	worker  *LedgerWorker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	pub := &capturePublisher{}
	mirror := memory.New()
	auditor := &stubAuditor{}
	return &fixture{
		repo:    repo,
		pub:     pub,
		ledger:  services.NewLedgerService(repo, pub, nil),
		envs:    services.NewEnvelopeService(repo, pub),
		engine:  services.NewTransferEngine(repo, pub, nil),
		mirror:  mirror,
		auditor: auditor,
		worker:  NewLedgerWorker(repo, mirror, auditor, testLogger()),
	}
}

func (f *fixture) deliver(t *testing.T) {
	t.Helper()
	for _, e := range f.pub.drain() {
		require.NoError(t, f.worker.HandleEvent(context.Background(), e), "event %s", e.Type)
	}
}

func TestLedgerWorker_MirrorsLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	income, err := f.ledger.CreateTransaction(ctx, 1, core.Transaction{
		Date: core.NewDate(2025, 3, 1), Kind: core.KindIncome, Category: "Salary", Amount: core.Cents(100000),
	})
	require.NoError(t, err)
	env, err := f.envs.CreateEnvelope(ctx, 1, "Vacation", "")
	require.NoError(t, err)
	res, err := f.engine.Deposit(ctx, 1, env.ID, core.Cents(25000))
	require.NoError(t, err)
	f.deliver(t)

	rows := f.mirror.Rows(1)
	require.Len(t, rows, 2)
	assert.Equal(t, income.ID, rows[0].ID)
	assert.Equal(t, res.Transaction.ID, rows[1].ID)
	assert.Equal(t, core.CategorySavingsDeposit, rows[1].Category)
	assert.EqualValues(t, 1, f.auditor.calls.Load())

	// redelivery does not duplicate rows
	require.NoError(t, f.worker.HandleEvent(ctx, events.LedgerEvent{
		Type: events.TransactionCreated, UserID: 1, TransactionID: income.ID,
	}))
	assert.Equal(t, 2, f.mirror.Appends())

	require.NoError(t, f.ledger.DeleteTransaction(ctx, 1, income.ID))
	f.deliver(t)
	rows = f.mirror.Rows(1)
	require.Len(t, rows, 1)
	assert.Equal(t, res.Transaction.ID, rows[0].ID)
}

func TestLedgerWorker_SkipsVanishedTransaction(t *testing.T) {
	f := newFixture(t)
	err := f.worker.HandleEvent(context.Background(), events.LedgerEvent{
		Type: events.TransactionCreated, UserID: 1, TransactionID: 999,
	})
	require.NoError(t, err)
	assert.Zero(t, f.mirror.Appends())
}

func TestLedgerWorker_AuditFailureRequeues(t *testing.T) {
	f := newFixture(t)
	f.auditor.err = errors.New("database is locked")

	err := f.worker.HandleEvent(context.Background(), events.LedgerEvent{Type: events.EnvelopeWithdraw, UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit tenant 1")
}

func TestLedgerWorker_DriftIsNotAnError(t *testing.T) {
	f := newFixture(t)
	f.auditor.report = services.Report{Drift: []services.Drift{
		{EnvelopeID: 4, Balance: core.Cents(100), Expected: core.Cents(50)},
	}}
	err := f.worker.HandleEvent(context.Background(), events.LedgerEvent{Type: events.EnvelopeDeposit, UserID: 1})
	assert.NoError(t, err)
}

func TestLedgerWorker_WithoutMirror(t *testing.T) {
	f := newFixture(t)
	w := NewLedgerWorker(f.repo, nil, nil, testLogger())
	ctx := context.Background()

	for _, typ := range []events.Type{
		events.TransactionCreated, events.TransactionDeleted,
		events.EnvelopeDeposit, events.EnvelopeCreated,
	} {
		assert.NoError(t, w.HandleEvent(ctx, events.LedgerEvent{Type: typ, UserID: 1, TransactionID: 1}), typ)
	}
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(testLogger(), time.Second)

	require.Error(t, s.Add("not a schedule", "bad", func(context.Context) error { return nil }))

	var runs atomic.Int32
	require.NoError(t, s.Add("@every 1s", "tick", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("failures are logged")
	}))

	s.RunNow("tick", func(context.Context) error { runs.Add(1); return nil })
	assert.EqualValues(t, 1, runs.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
