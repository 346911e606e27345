package repo

import (
	"context"
	"errors"
	"time"

	"github.com/opspulse/opspulse/internal/domain"
)

// ErrConflict is returned by IncidentStore.Update when the stored status
// no longer matches the expected one (lost compare-and-swap).
var ErrConflict = errors.New("incident status changed concurrently")

// Ports (interfaces) — swap in any DB adapter later.

type HealthStore interface {
	// Append writes one probe snapshot. Write-once; no updates.
	Append(ctx context.Context, r *domain.HealthRecord) error
	// Latest returns, per distinct service name, the record with the
	// greatest CheckedAt.
	Latest(ctx context.Context) ([]domain.HealthRecord, error)
	// Recent returns the most recent raw records across all services,
	// newest first, capped at limit.
	Recent(ctx context.Context, limit int) ([]domain.HealthRecord, error)
	// Since returns records for one service with CheckedAt >= from,
	// used by the daily uptime rollup.
	Since(ctx context.Context, service string, from time.Time) ([]domain.HealthRecord, error)
}

type ErrorStore interface {
	AppendError(ctx context.Context, e *domain.ErrorLogEntry) error
	// QueryErrors returns entries with CreatedAt >= since, newest
	// first, capped at limit. service == "" means no service filter.
	QueryErrors(ctx context.Context, since time.Time, service string, limit int) ([]domain.ErrorLogEntry, error)
}

type MetricStore interface {
	AppendMetric(ctx context.Context, m *domain.PerformanceMetric) error
	QueryMetrics(ctx context.Context, since time.Time, service string, limit int) ([]domain.PerformanceMetric, error)
}

type IncidentStore interface {
	Create(ctx context.Context, inc *domain.AlertIncident) error
	// Get returns NotFoundError when no incident has that id.
	Get(ctx context.Context, id domain.IncidentID) (*domain.AlertIncident, error)
	// Update persists inc only while the stored status still equals
	// expect; otherwise it returns ErrConflict.
	Update(ctx context.Context, inc *domain.AlertIncident, expect domain.IncidentStatus) error
	// Active returns open and acknowledged incidents, newest triggered
	// first.
	Active(ctx context.Context) ([]domain.AlertIncident, error)
}

type RuleStore interface {
	CreateRule(ctx context.Context, r *domain.AlertRule) error
	// ActiveRules returns rules with IsActive = true.
	ActiveRules(ctx context.Context) ([]domain.AlertRule, error)
	// SetActive toggles a rule; NotFoundError when absent.
	SetActive(ctx context.Context, id domain.RuleID, active bool) error
	// Touch stamps LastTriggeredAt; NotFoundError when absent.
	Touch(ctx context.Context, id domain.RuleID, at time.Time) error
}

type UptimeStore interface {
	// Upsert replaces the row for (service, day).
	Upsert(ctx context.Context, r *domain.UptimeDailyRecord) error
	// Range returns rows with Date >= since, oldest first.
	// service == "" means all services.
	Range(ctx context.Context, since time.Time, service string) ([]domain.UptimeDailyRecord, error)
}

// Stores bundles every port an adapter provides.
type Stores struct {
	Health    HealthStore
	Errors    ErrorStore
	Metrics   MetricStore
	Incidents IncidentStore
	Rules     RuleStore
	Uptime    UptimeStore
}
