package incident

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/repo/memory"
)

func newManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewManager(store, store, nil, zap.NewNop()), store
}

func TestTrigger_Validation(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	if _, err := m.Trigger(ctx, TriggerInput{Severity: "critical"}); !domain.IsValidation(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if _, err := m.Trigger(ctx, TriggerInput{RuleName: "cpu-high"}); !domain.IsValidation(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestTrigger_CreatesOpenIncident(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	inc, err := m.Trigger(ctx, TriggerInput{RuleName: "cpu-high", Severity: "critical", ServiceName: "api"})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if inc.ID == "" || inc.Status != domain.IncidentOpen || inc.TriggeredAt.IsZero() {
		t.Fatalf("bad incident: %+v", inc)
	}

	// round-trip: activeIncidents must include the new incident
	active, err := m.ActiveIncidents(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].ID != inc.ID || active[0].Status != domain.IncidentOpen {
		t.Fatalf("new incident missing from active set: %+v", active)
	}
}

func TestTrigger_StampsRuleLastTriggered(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	rule, err := m.CreateRule(ctx, "cpu-high", true)
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	inc, err := m.Trigger(ctx, TriggerInput{RuleName: rule.Name, Severity: "critical", RuleID: &rule.ID})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	rules, _ := store.ActiveRules(ctx)
	if rules[0].LastTriggeredAt == nil || !rules[0].LastTriggeredAt.Equal(inc.TriggeredAt) {
		t.Fatalf("lastTriggeredAt not stamped: %+v", rules[0])
	}
}

func TestTrigger_UnknownRuleDoesNotFail(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	bogus := domain.RuleID("does-not-exist")
	if _, err := m.Trigger(ctx, TriggerInput{RuleName: "x", Severity: "warning", RuleID: &bogus}); err != nil {
		t.Fatalf("rule-touch failure must not fail the trigger: %v", err)
	}
}

func TestTransition_FullLifecycle(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	inc, _ := m.Trigger(ctx, TriggerInput{RuleName: "cpu-high", Severity: "critical", ServiceName: "api"})

	acked, err := m.Transition(ctx, inc.ID, domain.IncidentAcknowledged, "ops", "")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if acked.Status != domain.IncidentAcknowledged || acked.AcknowledgedAt == nil || acked.AcknowledgedBy != "ops" {
		t.Fatalf("bad ack state: %+v", acked)
	}

	resolved, err := m.Transition(ctx, inc.ID, domain.IncidentResolved, "ops", "restarted pod")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != domain.IncidentResolved || resolved.ResolvedAt == nil || resolved.ResolutionNotes != "restarted pod" {
		t.Fatalf("bad resolved state: %+v", resolved)
	}

	// timestamps are monotonic
	if resolved.TriggeredAt.After(*resolved.AcknowledgedAt) || resolved.AcknowledgedAt.After(*resolved.ResolvedAt) {
		t.Fatalf("timestamps not monotonic: %+v", resolved)
	}

	// resolved incidents leave the active set
	active, _ := m.ActiveIncidents(ctx)
	for _, a := range active {
		if a.ID == inc.ID {
			t.Fatalf("resolved incident still active")
		}
	}
}

func TestTransition_DirectResolve(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	inc, _ := m.Trigger(ctx, TriggerInput{RuleName: "r", Severity: "warning"})
	resolved, err := m.Transition(ctx, inc.ID, domain.IncidentResolved, "ops", "")
	if err != nil {
		t.Fatalf("open->resolved should be allowed: %v", err)
	}
	if resolved.AcknowledgedAt != nil {
		t.Fatalf("skipped acknowledgement should leave ack fields empty: %+v", resolved)
	}
}

func TestTransition_Rejections(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	inc, _ := m.Trigger(ctx, TriggerInput{RuleName: "r", Severity: "warning"})
	_, _ = m.Transition(ctx, inc.ID, domain.IncidentResolved, "ops", "")

	// no exit from resolved
	if _, err := m.Transition(ctx, inc.ID, domain.IncidentAcknowledged, "ops", ""); !domain.IsValidation(err) {
		t.Fatalf("want ValidationError on resolved->acknowledged, got %v", err)
	}

	// unrecognized status
	if _, err := m.Transition(ctx, inc.ID, "escalated", "ops", ""); !domain.IsValidation(err) {
		t.Fatalf("want ValidationError on bogus status, got %v", err)
	}

	// unknown incident
	if _, err := m.Transition(ctx, "missing", domain.IncidentAcknowledged, "ops", ""); !domain.IsNotFound(err) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
}

type recordingNotifier struct {
	titles []string
	err    error
}

func (r *recordingNotifier) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func TestTrigger_NotifiesBestEffort(t *testing.T) {
	store := memory.New()
	n := &recordingNotifier{err: errors.New("webhook down")}
	m := NewManager(store, store, n, zap.NewNop())

	if _, err := m.Trigger(context.Background(), TriggerInput{RuleName: "r", Severity: "critical"}); err != nil {
		t.Fatalf("notifier failure must not fail the trigger: %v", err)
	}
	if len(n.titles) != 1 {
		t.Fatalf("want 1 notification, got %d", len(n.titles))
	}
}

func TestTransition_TimestampsUseClock(t *testing.T) {
	store := memory.New()
	m := NewManager(store, store, nil, zap.NewNop())
	fixed := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	inc, _ := m.Trigger(context.Background(), TriggerInput{RuleName: "r", Severity: "warning"})
	if !inc.TriggeredAt.Equal(fixed) {
		t.Fatalf("triggeredAt should come from the clock, got %v", inc.TriggeredAt)
	}
}
