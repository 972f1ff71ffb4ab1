package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/domain"
	"github.com/shaiso/Outreach/internal/repo"
)

// --- Test Fakes ---

// memRunStore — in-memory хранилище runs с тем же контрактом Claim,
// что и Postgres: условная запись под мьютексом, проигравший получает
// repo.ErrConflict.
type memRunStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*domain.Run
}

func newMemRunStore(runs ...*domain.Run) *memRunStore {
	s := &memRunStore{runs: make(map[uuid.UUID]*domain.Run)}
	for _, run := range runs {
		copied := *run
		s.runs[run.ID] = &copied
	}
	return s
}

func (s *memRunStore) Claim(_ context.Context, runID uuid.UUID, lease time.Duration) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, repo.ErrNotFound
	}

	now := time.Now()
	claimable := run.Status == domain.RunStatusQueued ||
		(run.Status == domain.RunStatusRunning && run.LeaseExpiresAt != nil && now.After(*run.LeaseExpiresAt))
	if !claimable || run.Attempts >= run.MaxAttempts {
		return nil, repo.ErrConflict
	}

	run.Status = domain.RunStatusRunning
	run.Attempts++
	expires := now.Add(lease)
	run.LeaseExpiresAt = &expires
	if run.StartedAt == nil {
		run.StartedAt = &now
	}

	copied := *run
	return &copied, nil
}

func (s *memRunStore) Finalize(_ context.Context, runID uuid.UUID, status domain.RunStatus, result *domain.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return repo.ErrNotFound
	}

	now := time.Now()
	run.Status = status
	run.Result = result
	run.CompletedAt = &now
	run.LeaseExpiresAt = nil
	return nil
}

func (s *memRunStore) ListQueued(_ context.Context, limit int) ([]domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Run
	for _, run := range s.runs {
		if run.Status == domain.RunStatusQueued && len(out) < limit {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (s *memRunStore) get(runID uuid.UUID) *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.runs[runID]
	return &copied
}

type memSendStore struct {
	mu    sync.Mutex
	sends []domain.Send
}

func (s *memSendStore) Create(_ context.Context, send *domain.Send) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, *send)
	return nil
}

func (s *memSendStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

type fixedResolver struct {
	recipients []domain.Recipient
	err        error
}

func (r fixedResolver) Resolve(context.Context, uuid.UUID, domain.RecipientSource) ([]domain.Recipient, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.recipients, nil
}

// scriptedMessenger — исходы доставки по email; failAt прерывает
// рассылку инфраструктурной ошибкой на указанном получателе.
type scriptedMessenger struct {
	mu         sync.Mutex
	deliveries map[string]Delivery
	failAt     string
	sent       []string
}

func (m *scriptedMessenger) Send(_ context.Context, _ *domain.Run, recipient domain.Recipient) (Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAt != "" && recipient.Email == m.failAt {
		return Delivery{}, fmt.Errorf("dial tcp: connection refused")
	}
	m.sent = append(m.sent, recipient.Email)
	if d, ok := m.deliveries[recipient.Email]; ok {
		return d, nil
	}
	return Delivery{Status: domain.SendStatusSent}, nil
}

func queuedRun(actionID domain.ActionID) *domain.Run {
	return &domain.Run{
		ID:          uuid.New(),
		ProjectID:   uuid.New(),
		ActionID:    actionID,
		Status:      domain.RunStatusQueued,
		RequestedAt: time.Now(),
		MaxAttempts: 3,
	}
}

func testExecutor(t *testing.T, runs *memRunStore, sends *memSendStore, resolver Resolver, msgr Messenger) *Executor {
	t.Helper()

	registry, err := catalog.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return New(Config{
		Runs:     runs,
		Sends:    sends,
		Resolver: resolver,
		Msgr:     msgr,
		Registry: registry,
		Lease:    time.Minute,
	})
}

// --- ExecuteRun Tests ---

func TestExecuteRunSuccess(t *testing.T) {
	run := queuedRun(domain.ActionSendPromoCampaign)
	runs := newMemRunStore(run)
	sends := &memSendStore{}
	msgr := &scriptedMessenger{}

	e := testExecutor(t, runs, sends, fixedResolver{recipients: []domain.Recipient{
		{Email: "alice@example.com"},
		{Email: "bob@example.com"},
		{Email: "carol@example.com"},
	}}, msgr)

	if err := e.ExecuteRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ExecuteRun() error: %v", err)
	}

	final := runs.get(run.ID)
	if final.Status != domain.RunStatusSucceeded {
		t.Fatalf("status = %q, want SUCCEEDED", final.Status)
	}
	if final.Result.TotalRecipients != 3 || final.Result.Successful != 3 {
		t.Errorf("result = %+v, want 3/3 successful", final.Result)
	}
	if final.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", final.Attempts)
	}
	if final.CompletedAt == nil || final.StartedAt == nil {
		t.Error("started_at and completed_at must be set")
	}
	if final.LeaseExpiresAt != nil {
		t.Error("lease must be cleared after finalize")
	}
	if sends.count() != 3 {
		t.Errorf("recorded %d sends, want 3", sends.count())
	}
}

func TestExecuteRunPerRecipientFailureDoesNotFailRun(t *testing.T) {
	run := queuedRun(domain.ActionSendPromoCampaign)
	runs := newMemRunStore(run)
	sends := &memSendStore{}
	msgr := &scriptedMessenger{deliveries: map[string]Delivery{
		"bounce@example.com":     {Status: domain.SendStatusFailed, Error: "mailbox full"},
		"suppressed@example.com": {Status: domain.SendStatusSuppressed},
	}}

	e := testExecutor(t, runs, sends, fixedResolver{recipients: []domain.Recipient{
		{Email: "alice@example.com"},
		{Email: "bounce@example.com"},
		{Email: "suppressed@example.com"},
	}}, msgr)

	if err := e.ExecuteRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ExecuteRun() error: %v", err)
	}

	// Ошибки отдельных получателей не эскалируют в сбой run
	final := runs.get(run.ID)
	if final.Status != domain.RunStatusSucceeded {
		t.Fatalf("status = %q, want SUCCEEDED", final.Status)
	}
	r := final.Result
	if r.Successful != 1 || r.Failed != 1 || r.Suppressed != 1 {
		t.Errorf("result = %+v, want 1/1/1", r)
	}
	if sends.count() != 3 {
		t.Errorf("recorded %d sends, want 3 (each recipient gets a send row)", sends.count())
	}
}

func TestExecuteRunMessengerInfraErrorFailsRun(t *testing.T) {
	run := queuedRun(domain.ActionSendPromoCampaign)
	runs := newMemRunStore(run)
	sends := &memSendStore{}
	msgr := &scriptedMessenger{failAt: "bob@example.com"}

	e := testExecutor(t, runs, sends, fixedResolver{recipients: []domain.Recipient{
		{Email: "alice@example.com"},
		{Email: "bob@example.com"},
		{Email: "carol@example.com"},
	}}, msgr)

	if err := e.ExecuteRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ExecuteRun() error: %v", err)
	}

	// Отказ транспорта — run FAILED с частичным результатом
	final := runs.get(run.ID)
	if final.Status != domain.RunStatusFailed {
		t.Fatalf("status = %q, want FAILED", final.Status)
	}
	if final.Result.Successful != 1 {
		t.Errorf("successful = %d, want 1 (partial progress preserved)", final.Result.Successful)
	}
	if !strings.Contains(final.Result.ErrorSummary, "messenger") {
		t.Errorf("error summary = %q, want messenger error", final.Result.ErrorSummary)
	}
}

func TestExecuteRunResolveErrorFailsRun(t *testing.T) {
	run := queuedRun(domain.ActionSendPromoCampaign)
	runs := newMemRunStore(run)

	e := testExecutor(t, runs, &memSendStore{}, fixedResolver{err: errors.New("event store down")}, &scriptedMessenger{})

	if err := e.ExecuteRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ExecuteRun() error: %v", err)
	}

	final := runs.get(run.ID)
	if final.Status != domain.RunStatusFailed {
		t.Fatalf("status = %q, want FAILED", final.Status)
	}
	if !strings.Contains(final.Result.ErrorSummary, "resolve recipients") {
		t.Errorf("error summary = %q, want resolve error", final.Result.ErrorSummary)
	}
}

func TestExecuteRunEmptySelection(t *testing.T) {
	run := queuedRun(domain.ActionSendWeeklyDigest)
	runs := newMemRunStore(run)
	sends := &memSendStore{}

	e := testExecutor(t, runs, sends, fixedResolver{}, &scriptedMessenger{})

	if err := e.ExecuteRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ExecuteRun() error: %v", err)
	}

	// Пустая выборка — валидный SUCCEEDED run с нулём получателей
	final := runs.get(run.ID)
	if final.Status != domain.RunStatusSucceeded {
		t.Fatalf("status = %q, want SUCCEEDED", final.Status)
	}
	if final.Result.TotalRecipients != 0 {
		t.Errorf("total = %d, want 0", final.Result.TotalRecipients)
	}
	if sends.count() != 0 {
		t.Errorf("recorded %d sends, want 0", sends.count())
	}
}

func TestExecuteRunNotFound(t *testing.T) {
	e := testExecutor(t, newMemRunStore(), &memSendStore{}, fixedResolver{}, &scriptedMessenger{})

	err := e.ExecuteRun(context.Background(), uuid.New())
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}

func TestExecuteRunTerminalNotClaimable(t *testing.T) {
	run := queuedRun(domain.ActionSendPromoCampaign)
	run.Status = domain.RunStatusSucceeded
	runs := newMemRunStore(run)

	e := testExecutor(t, runs, &memSendStore{}, fixedResolver{}, &scriptedMessenger{})

	err := e.ExecuteRun(context.Background(), run.ID)
	if !errors.Is(err, ErrNotClaimable) {
		t.Errorf("error = %v, want ErrNotClaimable", err)
	}
}

// --- Claim Exclusivity Tests ---

func TestExecuteRunConcurrentClaimSingleWinner(t *testing.T) {
	run := queuedRun(domain.ActionSendPromoCampaign)
	runs := newMemRunStore(run)
	sends := &memSendStore{}
	msgr := &scriptedMessenger{}

	e := testExecutor(t, runs, sends, fixedResolver{recipients: []domain.Recipient{
		{Email: "alice@example.com"},
		{Email: "bob@example.com"},
	}}, msgr)

	const workers = 8
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.ExecuteRun(context.Background(), run.ID)
		}(i)
	}
	wg.Wait()

	// Ровно один executor захватил run, остальные проиграли claim
	var winners, losers int
	for i := 0; i < workers; i++ {
		switch {
		case errs[i] == nil:
			winners++
		case errors.Is(errs[i], ErrNotClaimable):
			losers++
		default:
			t.Fatalf("worker %d unexpected error: %v", i, errs[i])
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if losers != workers-1 {
		t.Fatalf("losers = %d, want %d", losers, workers-1)
	}

	// Дублей отправки нет: по одному send на получателя
	if sends.count() != 2 {
		t.Errorf("recorded %d sends, want 2", sends.count())
	}

	final := runs.get(run.ID)
	if final.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", final.Attempts)
	}
}

func TestExecuteRunReclaimsExpiredLease(t *testing.T) {
	expired := time.Now().Add(-time.Minute)
	started := time.Now().Add(-10 * time.Minute)
	run := queuedRun(domain.ActionSendPromoCampaign)
	run.Status = domain.RunStatusRunning
	run.LeaseExpiresAt = &expired
	run.StartedAt = &started
	run.Attempts = 1

	runs := newMemRunStore(run)
	sends := &memSendStore{}

	e := testExecutor(t, runs, sends, fixedResolver{recipients: []domain.Recipient{
		{Email: "alice@example.com"},
	}}, &scriptedMessenger{})

	// Упавший executor оставил run в RUNNING; после истечения lease
	// его может перехватить другой экземпляр.
	if err := e.ExecuteRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ExecuteRun() error: %v", err)
	}

	final := runs.get(run.ID)
	if final.Status != domain.RunStatusSucceeded {
		t.Fatalf("status = %q, want SUCCEEDED", final.Status)
	}
	if final.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", final.Attempts)
	}
}

func TestExecuteRunLiveLeaseNotClaimable(t *testing.T) {
	live := time.Now().Add(5 * time.Minute)
	run := queuedRun(domain.ActionSendPromoCampaign)
	run.Status = domain.RunStatusRunning
	run.LeaseExpiresAt = &live
	run.Attempts = 1

	runs := newMemRunStore(run)
	e := testExecutor(t, runs, &memSendStore{}, fixedResolver{}, &scriptedMessenger{})

	err := e.ExecuteRun(context.Background(), run.ID)
	if !errors.Is(err, ErrNotClaimable) {
		t.Errorf("error = %v, want ErrNotClaimable", err)
	}
}

func TestExecuteRunAttemptsExhausted(t *testing.T) {
	expired := time.Now().Add(-time.Minute)
	run := queuedRun(domain.ActionSendPromoCampaign)
	run.Status = domain.RunStatusRunning
	run.LeaseExpiresAt = &expired
	run.Attempts = 3
	run.MaxAttempts = 3

	runs := newMemRunStore(run)
	e := testExecutor(t, runs, &memSendStore{}, fixedResolver{}, &scriptedMessenger{})

	// Потолок попыток исчерпан — перезахвата нет, run остаётся
	// застрявшим до ручного retry.
	err := e.ExecuteRun(context.Background(), run.ID)
	if !errors.Is(err, ErrNotClaimable) {
		t.Errorf("error = %v, want ErrNotClaimable", err)
	}
}

func TestExecuteRunContextCancelledMidDispatch(t *testing.T) {
	run := queuedRun(domain.ActionSendPromoCampaign)
	runs := newMemRunStore(run)
	sends := &memSendStore{}

	ctx, cancel := context.WithCancel(context.Background())
	msgr := &cancellingMessenger{cancel: cancel, after: 1}

	e := testExecutor(t, runs, sends, fixedResolver{recipients: []domain.Recipient{
		{Email: "alice@example.com"},
		{Email: "bob@example.com"},
		{Email: "carol@example.com"},
	}}, msgr)

	err := e.ExecuteRun(ctx, run.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	// Прерванный run остаётся RUNNING с lease: его подберут после
	// истечения lease, финализировать насильно нельзя.
	final := runs.get(run.ID)
	if final.Status != domain.RunStatusRunning {
		t.Errorf("status = %q, want RUNNING", final.Status)
	}
	if final.LeaseExpiresAt == nil {
		t.Error("interrupted run must keep its lease")
	}
}

// cancellingMessenger отменяет контекст после after успешных отправок.
type cancellingMessenger struct {
	cancel context.CancelFunc
	after  int
	sent   int
}

func (m *cancellingMessenger) Send(context.Context, *domain.Run, domain.Recipient) (Delivery, error) {
	m.sent++
	if m.sent >= m.after {
		m.cancel()
	}
	return Delivery{Status: domain.SendStatusSent}, nil
}
