package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/notify"
	"github.com/opspulse/opspulse/internal/repo"
)

// Manager owns the alert-incident lifecycle: open -> acknowledged ->
// resolved, with open -> resolved allowed directly. Resolved is
// terminal.
type Manager struct {
	incidents repo.IncidentStore
	rules     repo.RuleStore
	notifier  notify.Notifier
	log       *zap.Logger
	now       func() time.Time
}

func NewManager(incidents repo.IncidentStore, rules repo.RuleStore, notifier notify.Notifier, log *zap.Logger) *Manager {
	return &Manager{
		incidents: incidents,
		rules:     rules,
		notifier:  notifier,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TriggerInput is the payload for raising a new incident. RuleName and
// Severity are required; RuleID links to a pre-existing rule when the
// trigger came from rule evaluation.
type TriggerInput struct {
	RuleName       string         `json:"ruleName"`
	Severity       string         `json:"severity"`
	RuleID         *domain.RuleID `json:"ruleId,omitempty"`
	TriggeredValue *float64       `json:"triggeredValue,omitempty"`
	ThresholdValue *float64       `json:"thresholdValue,omitempty"`
	Condition      string         `json:"condition,omitempty"`
	ServiceName    string         `json:"serviceName,omitempty"`
	Endpoint       string         `json:"endpoint,omitempty"`
}

// Trigger raises a new open incident. When a rule id is supplied the
// rule's LastTriggeredAt is stamped as a side effect; a failure there is
// logged but never fails the trigger, the incident being the source of
// truth.
func (m *Manager) Trigger(ctx context.Context, in TriggerInput) (*domain.AlertIncident, error) {
	if in.RuleName == "" {
		return nil, domain.Required("ruleName")
	}
	if in.Severity == "" {
		return nil, domain.Required("severity")
	}

	inc := &domain.AlertIncident{
		RuleID:         in.RuleID,
		RuleName:       in.RuleName,
		Severity:       in.Severity,
		TriggeredValue: in.TriggeredValue,
		ThresholdValue: in.ThresholdValue,
		Condition:      in.Condition,
		ServiceName:    in.ServiceName,
		Endpoint:       in.Endpoint,
		Status:         domain.IncidentOpen,
		TriggeredAt:    m.now(),
	}
	if err := m.incidents.Create(ctx, inc); err != nil {
		return nil, err
	}

	if in.RuleID != nil {
		if err := m.rules.Touch(ctx, *in.RuleID, inc.TriggeredAt); err != nil {
			m.log.Warn("rule_touch_failed",
				zap.String("rule_id", string(*in.RuleID)),
				zap.String("incident_id", string(inc.ID)),
				zap.Error(err),
			)
		}
	}

	m.log.Info("incident_triggered",
		zap.String("incident_id", string(inc.ID)),
		zap.String("rule", inc.RuleName),
		zap.String("severity", inc.Severity),
	)
	m.notifyTriggered(ctx, inc)
	return inc, nil
}

func (m *Manager) notifyTriggered(ctx context.Context, inc *domain.AlertIncident) {
	if m.notifier == nil {
		return
	}
	title := fmt.Sprintf("🔔 Incident [%s] %s", inc.Severity, inc.RuleName)
	text := fmt.Sprintf("Service: %s\nTriggered: %s\nID: %s",
		orDash(inc.ServiceName), inc.TriggeredAt.Format(time.RFC3339), inc.ID)
	if err := m.notifier.Send(ctx, title, text); err != nil {
		m.log.Warn("incident_notify_failed",
			zap.String("incident_id", string(inc.ID)),
			zap.Error(err),
		)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Transition moves an incident to newStatus. Only forward edges are
// accepted; anything out of resolved, re-acknowledging, or reopening is
// rejected with a ValidationError.
func (m *Manager) Transition(ctx context.Context, id domain.IncidentID, newStatus domain.IncidentStatus, actor, notes string) (*domain.AlertIncident, error) {
	if !newStatus.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unrecognized value"}
	}

	inc, err := m.incidents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inc.Status.CanTransition(newStatus) {
		return nil, &domain.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot transition from %s to %s", inc.Status, newStatus),
		}
	}

	expect := inc.Status
	now := m.now()
	switch newStatus {
	case domain.IncidentAcknowledged:
		inc.AcknowledgedAt = &now
		inc.AcknowledgedBy = actor
	case domain.IncidentResolved:
		inc.ResolvedAt = &now
		inc.ResolvedBy = actor
		inc.ResolutionNotes = notes
	}
	inc.Status = newStatus

	if err := m.incidents.Update(ctx, inc, expect); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, &domain.ValidationError{Field: "status", Reason: "incident changed concurrently"}
		}
		return nil, err
	}

	m.log.Info("incident_transitioned",
		zap.String("incident_id", string(inc.ID)),
		zap.String("from", string(expect)),
		zap.String("to", string(newStatus)),
		zap.String("actor", actor),
	)
	return inc, nil
}

// ActiveIncidents returns open and acknowledged incidents, newest
// triggered first.
func (m *Manager) ActiveIncidents(ctx context.Context) ([]domain.AlertIncident, error) {
	return m.incidents.Active(ctx)
}

// ActiveRules returns rules with IsActive set.
func (m *Manager) ActiveRules(ctx context.Context) ([]domain.AlertRule, error) {
	return m.rules.ActiveRules(ctx)
}

// CreateRule registers a new alert rule.
func (m *Manager) CreateRule(ctx context.Context, name string, active bool) (*domain.AlertRule, error) {
	if name == "" {
		return nil, domain.Required("name")
	}
	r := &domain.AlertRule{Name: name, IsActive: active}
	if err := m.rules.CreateRule(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetRuleActive toggles a rule on or off.
func (m *Manager) SetRuleActive(ctx context.Context, id domain.RuleID, active bool) error {
	return m.rules.SetActive(ctx, id, active)
}
