package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"
	"cobrancazap/internal/infra/memory"

	"github.com/sirupsen/logrus"
)

var brt = time.FixedZone("BRT", -3*60*60)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// at builds an evaluation instant on the given civil day at 10:00 BRT.
func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, brt)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func overdueRule() notification.Rule {
	return notification.Rule{ID: "vencidas", Name: "Cobranças vencidas", Kind: notification.KindOverdue, Enabled: true, ScheduleTime: notification.DailyAt(9, 0)}
}

func overdueCharge(id string, due time.Time) billing.Charge {
	return billing.Charge{ID: id, CustomerID: "cust-1", AmountCents: 15000, DueDate: due, Status: billing.StatusOverdue, PaymentLink: "https://pay.example/" + id}
}

type sentMessage struct {
	ChargeID string
	RuleID   string
	Message  string
}

// fakeSender records deliveries. failFor makes Send fail for the listed charge ids.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
}

func (s *fakeSender) Send(_ context.Context, charge billing.Charge, rule notification.Rule, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[charge.ID]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentMessage{ChargeID: charge.ID, RuleID: rule.ID, Message: message})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// blockingSender signals entered on every call and waits for release.
type blockingSender struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingSender() *blockingSender {
	return &blockingSender{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (s *blockingSender) Send(ctx context.Context, _ billing.Charge, _ notification.Rule, _ string) error {
	s.entered <- struct{}{}
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// failingHistory fails every Append after the first okAppends.
type failingHistory struct {
	*memory.HistoryStore
	mu        sync.Mutex
	okAppends int
}

var errDiskFull = errors.New("disk full")

func (h *failingHistory) Append(ctx context.Context, rec notification.Record) error {
	h.mu.Lock()
	if h.okAppends <= 0 {
		h.mu.Unlock()
		return errDiskFull
	}
	h.okAppends--
	h.mu.Unlock()
	return h.HistoryStore.Append(ctx, rec)
}

type fixture struct {
	rules    *memory.RuleRepository
	registry *RuleRegistry
	ledger   *memory.Ledger
	history  notification.HistoryStore
	sender   notification.Sender
	eval     *TriggerEvaluator
	coord    *Coordinator
}

func newFixture(sender notification.Sender, history notification.HistoryStore, rules ...notification.Rule) *fixture {
	if history == nil {
		history = memory.NewHistoryStore()
	}
	f := &fixture{
		rules:   memory.NewRuleRepository(rules...),
		ledger:  memory.NewLedger(),
		history: history,
		sender:  sender,
		eval:    NewTriggerEvaluator(testLogger()),
	}
	f.ledger.PutCustomer(billing.Customer{ID: "cust-1", Name: "Maria Silva", TelegramChatID: 42})
	f.registry = NewRuleRegistry(f.rules, notification.ThrottleSettings{AntiSpamEnabled: true, CooldownDays: 3}, testLogger())
	renderer := NewTemplateRenderer(f.ledger, "Loja Exemplo")
	f.coord = NewCoordinator(f.registry, f.ledger, f.eval, history, renderer, sender, testLogger(), CoordinatorConfig{Concurrency: 2})
	return f
}

func outcomes(h notification.HistoryStore) map[notification.Outcome]int {
	out := map[notification.Outcome]int{}
	for rec, err := range h.Query(context.Background(), notification.HistoryFilter{}) {
		if err != nil {
			panic(err)
		}
		out[rec.Outcome]++
	}
	return out
}
