package attribution

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/domain"
)

// --- Test Fakes ---

type memRunStore struct {
	awaiting []domain.Run
	outcomes map[uuid.UUID]*domain.RunOutcome
}

func newMemRunStore(runs ...domain.Run) *memRunStore {
	return &memRunStore{awaiting: runs, outcomes: make(map[uuid.UUID]*domain.RunOutcome)}
}

func (s *memRunStore) ListAwaitingOutcome(_ context.Context, actionIDs []domain.ActionID, limit int) ([]domain.Run, error) {
	allowed := make(map[domain.ActionID]bool, len(actionIDs))
	for _, id := range actionIDs {
		allowed[id] = true
	}

	var out []domain.Run
	for _, run := range s.awaiting {
		if allowed[run.ActionID] && s.outcomes[run.ID] == nil && len(out) < limit {
			out = append(out, run)
		}
	}
	return out, nil
}

func (s *memRunStore) SetOutcome(_ context.Context, runID uuid.UUID, outcome *domain.RunOutcome) error {
	s.outcomes[runID] = outcome
	return nil
}

type memSendStore struct {
	sends map[uuid.UUID][]domain.Send
}

func (s *memSendStore) ListByRun(_ context.Context, runID uuid.UUID) ([]domain.Send, error) {
	return s.sends[runID], nil
}

type memEventStore struct {
	events []domain.BusinessEvent
}

func (s *memEventStore) Query(_ context.Context, projectID uuid.UUID, eventType string, from, to time.Time) ([]domain.BusinessEvent, error) {
	var out []domain.BusinessEvent
	for _, ev := range s.events {
		if ev.ProjectID != projectID || ev.Type != eventType {
			continue
		}
		if ev.OccurredAt.Before(from) || ev.OccurredAt.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// completedRun — SUCCEEDED run recover_abandoned_carts (окно 72ч),
// завершённый completedAgo назад.
func completedRun(completedAgo time.Duration) domain.Run {
	completed := time.Now().Add(-completedAgo)
	return domain.Run{
		ID:          uuid.New(),
		ProjectID:   uuid.New(),
		ActionID:    domain.ActionRecoverAbandonedCarts,
		Status:      domain.RunStatusSucceeded,
		CompletedAt: &completed,
	}
}

func sentTo(run domain.Run, emails ...string) map[uuid.UUID][]domain.Send {
	var sends []domain.Send
	for _, email := range emails {
		sends = append(sends, domain.Send{
			ID:             uuid.New(),
			RunID:          run.ID,
			ProjectID:      run.ProjectID,
			RecipientEmail: email,
			Status:         domain.SendStatusSent,
		})
	}
	return map[uuid.UUID][]domain.Send{run.ID: sends}
}

func conversion(run domain.Run, email, sessionID string, revenueCents int64, afterCompletion time.Duration) domain.BusinessEvent {
	return domain.BusinessEvent{
		ID:           uuid.New(),
		ProjectID:    run.ProjectID,
		Type:         "order_completed",
		Email:        email,
		SessionID:    sessionID,
		RevenueCents: revenueCents,
		Currency:     "USD",
		OccurredAt:   run.CompletedAt.Add(afterCompletion),
	}
}

func session(run domain.Run, sessionID, email string, afterCompletion time.Duration) domain.BusinessEvent {
	return domain.BusinessEvent{
		ID:         uuid.New(),
		ProjectID:  run.ProjectID,
		Type:       "session_started",
		Email:      email,
		SessionID:  sessionID,
		OccurredAt: run.CompletedAt.Add(afterCompletion),
	}
}

func testCalculator(t *testing.T, runs *memRunStore, sends *memSendStore, events *memEventStore) *Calculator {
	t.Helper()

	registry, err := catalog.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return New(Config{
		Runs:     runs,
		Sends:    sends,
		Events:   events,
		Registry: registry,
	})
}

// --- Attribution Tests ---

func TestTickEmailMatchHighConfidence(t *testing.T) {
	run := completedRun(100 * time.Hour)
	runs := newMemRunStore(run)
	sends := &memSendStore{sends: sentTo(run, "alice@example.com", "bob@example.com")}
	events := &memEventStore{events: []domain.BusinessEvent{
		conversion(run, "alice@example.com", "", 5000, 10*time.Hour),
		conversion(run, "bob@example.com", "", 3000, 40*time.Hour),
	}}

	c := testCalculator(t, runs, sends, events)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	outcome := runs.outcomes[run.ID]
	if outcome == nil {
		t.Fatal("outcome was not written")
	}
	if outcome.Model != "last_touch" {
		t.Errorf("model = %q, want last_touch", outcome.Model)
	}
	if outcome.Conversions != 2 {
		t.Errorf("conversions = %d, want 2", outcome.Conversions)
	}
	if outcome.RevenueCents != 8000 {
		t.Errorf("revenue_cents = %d, want 8000", outcome.RevenueCents)
	}
	if outcome.Currency != "USD" {
		t.Errorf("currency = %q, want USD", outcome.Currency)
	}
	// Только прямые совпадения email — высокая уверенность
	if outcome.Confidence != domain.ConfidenceHigh {
		t.Errorf("confidence = %q, want HIGH", outcome.Confidence)
	}
}

func TestTickSessionMatchLowConfidence(t *testing.T) {
	run := completedRun(100 * time.Hour)
	runs := newMemRunStore(run)
	sends := &memSendStore{sends: sentTo(run, "alice@example.com")}
	// Анонимный заказ в сессии, которую позже связали с alice
	events := &memEventStore{events: []domain.BusinessEvent{
		session(run, "s-1", "alice@example.com", 5*time.Hour),
		conversion(run, "", "s-1", 2500, 6*time.Hour),
	}}

	c := testCalculator(t, runs, sends, events)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	outcome := runs.outcomes[run.ID]
	if outcome == nil {
		t.Fatal("outcome was not written")
	}
	if outcome.Conversions != 1 || outcome.RevenueCents != 2500 {
		t.Errorf("outcome = %+v, want 1 conversion / 2500", outcome)
	}
	if outcome.Confidence != domain.ConfidenceLow {
		t.Errorf("confidence = %q, want LOW", outcome.Confidence)
	}
}

func TestTickEntityMatchHighConfidence(t *testing.T) {
	run := completedRun(100 * time.Hour)
	runs := newMemRunStore(run)
	sends := &memSendStore{sends: sentTo(run, "alice@example.com")}
	// В конверсии нет email, но заказ ссылается на ту же корзину,
	// из-за которой run и писал alice
	events := &memEventStore{events: []domain.BusinessEvent{
		{
			ID:         uuid.New(),
			ProjectID:  run.ProjectID,
			Type:       "cart_abandoned",
			Email:      "alice@example.com",
			EntityID:   "cart-17",
			OccurredAt: run.CompletedAt.Add(-2 * time.Hour),
		},
		{
			ID:           uuid.New(),
			ProjectID:    run.ProjectID,
			Type:         "order_completed",
			EntityID:     "cart-17",
			RevenueCents: 4200,
			Currency:     "USD",
			OccurredAt:   run.CompletedAt.Add(12 * time.Hour),
		},
	}}

	c := testCalculator(t, runs, sends, events)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	outcome := runs.outcomes[run.ID]
	if outcome == nil {
		t.Fatal("outcome was not written")
	}
	if outcome.Conversions != 1 || outcome.RevenueCents != 4200 {
		t.Errorf("outcome = %+v, want 1 conversion / 4200", outcome)
	}
	// Совпадение по entity id — прямое, как и по email
	if outcome.Confidence != domain.ConfidenceHigh {
		t.Errorf("confidence = %q, want HIGH", outcome.Confidence)
	}
	if len(outcome.MatchedBy) != 1 || outcome.MatchedBy[0] != "entity" {
		t.Errorf("matched_by = %v, want [entity]", outcome.MatchedBy)
	}
}

func TestTickMixedMatchMediumConfidence(t *testing.T) {
	run := completedRun(100 * time.Hour)
	runs := newMemRunStore(run)
	sends := &memSendStore{sends: sentTo(run, "alice@example.com", "bob@example.com")}
	events := &memEventStore{events: []domain.BusinessEvent{
		conversion(run, "alice@example.com", "", 5000, 10*time.Hour),
		session(run, "s-1", "bob@example.com", 5*time.Hour),
		conversion(run, "", "s-1", 2500, 6*time.Hour),
	}}

	c := testCalculator(t, runs, sends, events)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	outcome := runs.outcomes[run.ID]
	if outcome == nil {
		t.Fatal("outcome was not written")
	}
	if outcome.Conversions != 2 {
		t.Errorf("conversions = %d, want 2", outcome.Conversions)
	}
	if outcome.Confidence != domain.ConfidenceMedium {
		t.Errorf("confidence = %q, want MEDIUM", outcome.Confidence)
	}
	if len(outcome.MatchedBy) != 2 {
		t.Errorf("matched_by = %v, want both email and session", outcome.MatchedBy)
	}
}

func TestTickIgnoresUnrelatedConversions(t *testing.T) {
	run := completedRun(100 * time.Hour)
	runs := newMemRunStore(run)
	sends := &memSendStore{sends: sentTo(run, "alice@example.com")}
	events := &memEventStore{events: []domain.BusinessEvent{
		// Заказ человека, которому run ничего не отправлял
		conversion(run, "stranger@example.com", "", 9000, 10*time.Hour),
		// Заказ получателя за пределами окна атрибуции
		conversion(run, "alice@example.com", "", 5000, 80*time.Hour),
	}}

	c := testCalculator(t, runs, sends, events)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	outcome := runs.outcomes[run.ID]
	if outcome == nil {
		t.Fatal("outcome was not written")
	}
	if outcome.Conversions != 0 || outcome.RevenueCents != 0 {
		t.Errorf("outcome = %+v, want zero conversions", outcome)
	}
	// Пустой результат — это точный результат, не догадка
	if outcome.Confidence != domain.ConfidenceHigh {
		t.Errorf("confidence = %q, want HIGH", outcome.Confidence)
	}
}

func TestTickExcludesFailedRecipients(t *testing.T) {
	run := completedRun(100 * time.Hour)
	runs := newMemRunStore(run)
	// Письмо carol не дошло — её заказ не атрибутируется run'у
	sends := &memSendStore{sends: map[uuid.UUID][]domain.Send{run.ID: {
		{ID: uuid.New(), RunID: run.ID, RecipientEmail: "alice@example.com", Status: domain.SendStatusSent},
		{ID: uuid.New(), RunID: run.ID, RecipientEmail: "carol@example.com", Status: domain.SendStatusFailed},
	}}}
	events := &memEventStore{events: []domain.BusinessEvent{
		conversion(run, "carol@example.com", "", 7000, 10*time.Hour),
	}}

	c := testCalculator(t, runs, sends, events)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	outcome := runs.outcomes[run.ID]
	if outcome == nil {
		t.Fatal("outcome was not written")
	}
	if outcome.Conversions != 0 {
		t.Errorf("conversions = %d, want 0", outcome.Conversions)
	}
}

func TestTickSkipsOpenWindow(t *testing.T) {
	// Окно 72ч ещё не закрылось — run пропускается до следующих тиков
	run := completedRun(1 * time.Hour)
	runs := newMemRunStore(run)
	sends := &memSendStore{sends: sentTo(run, "alice@example.com")}
	events := &memEventStore{events: []domain.BusinessEvent{
		conversion(run, "alice@example.com", "", 5000, 30*time.Minute),
	}}

	c := testCalculator(t, runs, sends, events)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	if runs.outcomes[run.ID] != nil {
		t.Error("outcome must not be computed before the window closes")
	}
}

func TestTickComputesOnce(t *testing.T) {
	run := completedRun(100 * time.Hour)
	runs := newMemRunStore(run)
	sends := &memSendStore{sends: sentTo(run, "alice@example.com")}
	events := &memEventStore{events: []domain.BusinessEvent{
		conversion(run, "alice@example.com", "", 5000, 10*time.Hour),
	}}

	c := testCalculator(t, runs, sends, events)
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("first Tick() error: %v", err)
	}
	first := runs.outcomes[run.ID]
	if first == nil {
		t.Fatal("outcome was not written")
	}

	// Повторный тик не пересчитывает уже атрибутированный run
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick() error: %v", err)
	}
	if runs.outcomes[run.ID] != first {
		t.Error("outcome must be computed exactly once")
	}
}
