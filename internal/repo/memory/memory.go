package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/repo"
)

var _ repo.HealthStore = (*Store)(nil)
var _ repo.ErrorStore = (*Store)(nil)
var _ repo.MetricStore = (*Store)(nil)
var _ repo.IncidentStore = (*Store)(nil)
var _ repo.RuleStore = (*Store)(nil)
var _ repo.UptimeStore = (*Store)(nil)

// Store keeps everything in process memory. Used for dev and tests.
type Store struct {
	mu        sync.RWMutex
	health    []*domain.HealthRecord
	errors    []*domain.ErrorLogEntry
	metrics   []*domain.PerformanceMetric
	incidents map[domain.IncidentID]*domain.AlertIncident
	rules     map[domain.RuleID]*domain.AlertRule
	uptime    map[string]*domain.UptimeDailyRecord // key: service|yyyy-mm-dd
}

func New() *Store {
	return &Store{
		health:    make([]*domain.HealthRecord, 0, 128),
		errors:    make([]*domain.ErrorLogEntry, 0, 128),
		metrics:   make([]*domain.PerformanceMetric, 0, 128),
		incidents: make(map[domain.IncidentID]*domain.AlertIncident),
		rules:     make(map[domain.RuleID]*domain.AlertRule),
		uptime:    make(map[string]*domain.UptimeDailyRecord),
	}
}

// Stores returns the port bundle backed by this single store.
func (m *Store) Stores() repo.Stores {
	return repo.Stores{
		Health:    m,
		Errors:    m,
		Metrics:   m,
		Incidents: m,
		Rules:     m,
		Uptime:    m,
	}
}

// ---- HealthStore ----

func (m *Store) Append(ctx context.Context, r *domain.HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	cp := *r
	m.health = append(m.health, &cp)
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]domain.HealthRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]*domain.HealthRecord)
	for _, r := range m.health {
		cur := latest[r.ServiceName]
		if cur == nil || r.CheckedAt.After(cur.CheckedAt) {
			latest[r.ServiceName] = r
		}
	}

	out := make([]domain.HealthRecord, 0, len(latest))
	for _, r := range latest {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out, nil
}

func (m *Store) Recent(ctx context.Context, limit int) ([]domain.HealthRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.HealthRecord, 0, len(m.health))
	for _, r := range m.health {
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) Since(ctx context.Context, service string, from time.Time) ([]domain.HealthRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.HealthRecord
	for _, r := range m.health {
		if r.ServiceName == service && !r.CheckedAt.Before(from) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.Before(out[j].CheckedAt) })
	return out, nil
}

// ---- ErrorStore ----

func (m *Store) AppendError(ctx context.Context, e *domain.ErrorLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = domain.ErrorID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	m.errors = append(m.errors, &cp)
	return nil
}

func (m *Store) QueryErrors(ctx context.Context, since time.Time, service string, limit int) ([]domain.ErrorLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.ErrorLogEntry
	for _, e := range m.errors {
		if e.CreatedAt.Before(since) {
			continue
		}
		if service != "" && e.ServiceName != service {
			continue
		}
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- MetricStore ----

func (m *Store) AppendMetric(ctx context.Context, pm *domain.PerformanceMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pm.ID == "" {
		pm.ID = domain.MetricID(uuid.NewString())
	}
	if pm.RecordedAt.IsZero() {
		pm.RecordedAt = time.Now().UTC()
	}
	cp := *pm
	m.metrics = append(m.metrics, &cp)
	return nil
}

func (m *Store) QueryMetrics(ctx context.Context, since time.Time, service string, limit int) ([]domain.PerformanceMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.PerformanceMetric
	for _, pm := range m.metrics {
		if pm.RecordedAt.Before(since) {
			continue
		}
		if service != "" && pm.ServiceName != service {
			continue
		}
		out = append(out, *pm)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- IncidentStore ----

func (m *Store) Create(ctx context.Context, inc *domain.AlertIncident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc.ID == "" {
		inc.ID = domain.IncidentID(uuid.NewString())
	}
	if inc.TriggeredAt.IsZero() {
		inc.TriggeredAt = time.Now().UTC()
	}
	cp := *inc
	m.incidents[inc.ID] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.IncidentID) (*domain.AlertIncident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "incident", ID: string(id)}
	}
	cp := *inc
	return &cp, nil
}

func (m *Store) Update(ctx context.Context, inc *domain.AlertIncident, expect domain.IncidentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.incidents[inc.ID]
	if !ok {
		return &domain.NotFoundError{Kind: "incident", ID: string(inc.ID)}
	}
	if cur.Status != expect {
		return repo.ErrConflict
	}
	cp := *inc
	m.incidents[inc.ID] = &cp
	return nil
}

func (m *Store) Active(ctx context.Context) ([]domain.AlertIncident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.AlertIncident
	for _, inc := range m.incidents {
		if inc.Status.Active() {
			out = append(out, *inc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}

// ---- RuleStore ----

func (m *Store) CreateRule(ctx context.Context, r *domain.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = domain.RuleID(uuid.NewString())
	}
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *Store) ActiveRules(ctx context.Context) ([]domain.AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.AlertRule
	for _, r := range m.rules {
		if r.IsActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) SetActive(ctx context.Context, id domain.RuleID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return &domain.NotFoundError{Kind: "rule", ID: string(id)}
	}
	r.IsActive = active
	return nil
}

func (m *Store) Touch(ctx context.Context, id domain.RuleID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return &domain.NotFoundError{Kind: "rule", ID: string(id)}
	}
	t := at
	r.LastTriggeredAt = &t
	return nil
}

// ---- UptimeStore ----

func (m *Store) Upsert(ctx context.Context, r *domain.UptimeDailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := r.Date.UTC().Truncate(24 * time.Hour)
	cp := *r
	cp.Date = day
	m.uptime[r.ServiceName+"|"+day.Format("2006-01-02")] = &cp
	return nil
}

func (m *Store) Range(ctx context.Context, since time.Time, service string) ([]domain.UptimeDailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.UptimeDailyRecord
	for _, r := range m.uptime {
		if r.Date.Before(since) {
			continue
		}
		if service != "" && r.ServiceName != service {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ServiceName < out[j].ServiceName
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}
