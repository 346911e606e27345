package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/repo"
)

var _ repo.HealthStore = (*Store)(nil)
var _ repo.ErrorStore = (*Store)(nil)
var _ repo.MetricStore = (*Store)(nil)
var _ repo.IncidentStore = (*Store)(nil)
var _ repo.RuleStore = (*Store)(nil)
var _ repo.UptimeStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool, log: log}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Stores returns the port bundle backed by this adapter.
func (s *Store) Stores() repo.Stores {
	return repo.Stores{
		Health:    s,
		Errors:    s,
		Metrics:   s,
		Incidents: s,
		Rules:     s,
		Uptime:    s,
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_records (
			id            BIGSERIAL PRIMARY KEY,
			service_name  TEXT NOT NULL,
			service_url   TEXT NOT NULL,
			service_type  TEXT NOT NULL,
			status        TEXT NOT NULL,
			status_code   INT,
			response_ms   DOUBLE PRECISION NOT NULL,
			error_message TEXT,
			checked_at    TIMESTAMPTZ NOT NULL,
			last_healthy_at   TIMESTAMPTZ,
			last_unhealthy_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_service_time
			ON health_records (service_name, checked_at DESC)`,
		`CREATE TABLE IF NOT EXISTS error_logs (
			id            UUID PRIMARY KEY,
			service_name  TEXT NOT NULL,
			error_type    TEXT NOT NULL,
			error_message TEXT NOT NULL,
			stack_trace   TEXT,
			endpoint      TEXT,
			user_id       TEXT,
			request_id    TEXT,
			error_hash    TEXT NOT NULL,
			user_impact   TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_error_logs_time ON error_logs (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_error_logs_hash ON error_logs (error_hash)`,
		`CREATE TABLE IF NOT EXISTS performance_metrics (
			id           UUID PRIMARY KEY,
			metric_name  TEXT NOT NULL,
			metric_type  TEXT NOT NULL,
			value        DOUBLE PRECISION NOT NULL,
			unit         TEXT,
			service_name TEXT NOT NULL,
			endpoint     TEXT,
			tags         JSONB,
			recorded_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_time ON performance_metrics (recorded_at DESC)`,
		`CREATE TABLE IF NOT EXISTS alert_rules (
			id                UUID PRIMARY KEY,
			name              TEXT NOT NULL,
			is_active         BOOLEAN NOT NULL DEFAULT TRUE,
			last_triggered_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS alert_incidents (
			id               UUID PRIMARY KEY,
			rule_id          UUID,
			rule_name        TEXT NOT NULL,
			severity         TEXT NOT NULL,
			triggered_value  DOUBLE PRECISION,
			threshold_value  DOUBLE PRECISION,
			condition        TEXT,
			service_name     TEXT,
			endpoint         TEXT,
			status           TEXT NOT NULL,
			triggered_at     TIMESTAMPTZ NOT NULL,
			acknowledged_at  TIMESTAMPTZ,
			acknowledged_by  TEXT,
			resolved_at      TIMESTAMPTZ,
			resolved_by      TEXT,
			resolution_notes TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_status ON alert_incidents (status, triggered_at DESC)`,
		`CREATE TABLE IF NOT EXISTS uptime_daily (
			service_name   TEXT NOT NULL,
			day            DATE NOT NULL,
			uptime_percent DOUBLE PRECISION,
			PRIMARY KEY (service_name, day)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ---- HealthStore ----

func (s *Store) Append(ctx context.Context, r *domain.HealthRecord) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO health_records
		   (service_name, service_url, service_type, status, status_code,
		    response_ms, error_message, checked_at, last_healthy_at, last_unhealthy_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ServiceName, r.ServiceURL, string(r.ServiceType), string(r.Status),
		zeroNullInt(r.StatusCode), r.ResponseTimeMS, emptyNull(r.ErrorMessage),
		r.CheckedAt, r.LastHealthyAt, r.LastUnhealthyAt,
	)
	if err != nil {
		return fmt.Errorf("insert health record: %w", err)
	}
	return nil
}

const healthCols = `service_name, service_url, service_type, status,
	COALESCE(status_code, 0), response_ms, COALESCE(error_message, ''),
	checked_at, last_healthy_at, last_unhealthy_at`

func (s *Store) Latest(ctx context.Context) ([]domain.HealthRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT ON (service_name) `+healthCols+`
  FROM health_records
 ORDER BY service_name, checked_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest health: %w", err)
	}
	defer rows.Close()
	return scanHealth(rows)
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.HealthRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+healthCols+`
  FROM health_records
 ORDER BY checked_at DESC
 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent health: %w", err)
	}
	defer rows.Close()
	return scanHealth(rows)
}

func (s *Store) Since(ctx context.Context, service string, from time.Time) ([]domain.HealthRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+healthCols+`
  FROM health_records
 WHERE service_name = $1 AND checked_at >= $2
 ORDER BY checked_at ASC`, service, from)
	if err != nil {
		return nil, fmt.Errorf("health since: %w", err)
	}
	defer rows.Close()
	return scanHealth(rows)
}

func scanHealth(rows pgx.Rows) ([]domain.HealthRecord, error) {
	var out []domain.HealthRecord
	for rows.Next() {
		var (
			r       domain.HealthRecord
			svcType string
			status  string
		)
		if err := rows.Scan(&r.ServiceName, &r.ServiceURL, &svcType, &status,
			&r.StatusCode, &r.ResponseTimeMS, &r.ErrorMessage,
			&r.CheckedAt, &r.LastHealthyAt, &r.LastUnhealthyAt); err != nil {
			return nil, fmt.Errorf("scan health record: %w", err)
		}
		r.ServiceType = domain.ServiceType(svcType)
		r.Status = domain.HealthStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- ErrorStore ----

func (s *Store) AppendError(ctx context.Context, e *domain.ErrorLogEntry) error {
	if e.ID == "" {
		e.ID = domain.ErrorID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO error_logs
		   (id, service_name, error_type, error_message, stack_trace,
		    endpoint, user_id, request_id, error_hash, user_impact, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(e.ID), e.ServiceName, e.ErrorType, e.ErrorMessage,
		emptyNull(e.StackTrace), emptyNull(e.Endpoint), emptyNull(e.UserID),
		emptyNull(e.RequestID), e.ErrorHash, string(e.UserImpact), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

func (s *Store) QueryErrors(ctx context.Context, since time.Time, service string, limit int) ([]domain.ErrorLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, service_name, error_type, error_message,
       COALESCE(stack_trace, ''), COALESCE(endpoint, ''),
       COALESCE(user_id, ''), COALESCE(request_id, ''),
       error_hash, user_impact, created_at
  FROM error_logs
 WHERE created_at >= $1
   AND ($2 = '' OR service_name = $2)
 ORDER BY created_at DESC
 LIMIT $3`, since, service, limit)
	if err != nil {
		return nil, fmt.Errorf("query error logs: %w", err)
	}
	defer rows.Close()

	var out []domain.ErrorLogEntry
	for rows.Next() {
		var (
			e      domain.ErrorLogEntry
			id     string
			impact string
		)
		if err := rows.Scan(&id, &e.ServiceName, &e.ErrorType, &e.ErrorMessage,
			&e.StackTrace, &e.Endpoint, &e.UserID, &e.RequestID,
			&e.ErrorHash, &impact, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		e.ID = domain.ErrorID(id)
		e.UserImpact = domain.UserImpact(impact)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- MetricStore ----

func (s *Store) AppendMetric(ctx context.Context, m *domain.PerformanceMetric) error {
	if m.ID == "" {
		m.ID = domain.MetricID(uuid.NewString())
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	var tags []byte
	if len(m.Tags) > 0 {
		b, err := json.Marshal(m.Tags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}
		tags = b
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO performance_metrics
		   (id, metric_name, metric_type, value, unit, service_name, endpoint, tags, recorded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		string(m.ID), m.MetricName, string(m.MetricType), m.Value,
		emptyNull(m.Unit), m.ServiceName, emptyNull(m.Endpoint), tags, m.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

func (s *Store) QueryMetrics(ctx context.Context, since time.Time, service string, limit int) ([]domain.PerformanceMetric, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, metric_name, metric_type, value, COALESCE(unit, ''),
       service_name, COALESCE(endpoint, ''), tags, recorded_at
  FROM performance_metrics
 WHERE recorded_at >= $1
   AND ($2 = '' OR service_name = $2)
 ORDER BY recorded_at DESC
 LIMIT $3`, since, service, limit)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.PerformanceMetric
	for rows.Next() {
		var (
			m     domain.PerformanceMetric
			id    string
			mtype string
			tags  []byte
		)
		if err := rows.Scan(&id, &m.MetricName, &mtype, &m.Value, &m.Unit,
			&m.ServiceName, &m.Endpoint, &tags, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.ID = domain.MetricID(id)
		m.MetricType = domain.MetricType(mtype)
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &m.Tags); err != nil {
				return nil, fmt.Errorf("decode tags: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- IncidentStore ----

func (s *Store) Create(ctx context.Context, inc *domain.AlertIncident) error {
	if inc.ID == "" {
		inc.ID = domain.IncidentID(uuid.NewString())
	}
	if inc.TriggeredAt.IsZero() {
		inc.TriggeredAt = time.Now().UTC()
	}
	var ruleID *string
	if inc.RuleID != nil {
		v := string(*inc.RuleID)
		ruleID = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_incidents
		   (id, rule_id, rule_name, severity, triggered_value, threshold_value,
		    condition, service_name, endpoint, status, triggered_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(inc.ID), ruleID, inc.RuleName, inc.Severity,
		inc.TriggeredValue, inc.ThresholdValue, emptyNull(inc.Condition),
		emptyNull(inc.ServiceName), emptyNull(inc.Endpoint),
		string(inc.Status), inc.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

const incidentCols = `id, rule_id, rule_name, severity, triggered_value,
	threshold_value, COALESCE(condition, ''), COALESCE(service_name, ''),
	COALESCE(endpoint, ''), status, triggered_at, acknowledged_at,
	COALESCE(acknowledged_by, ''), resolved_at, COALESCE(resolved_by, ''),
	COALESCE(resolution_notes, '')`

func (s *Store) Get(ctx context.Context, id domain.IncidentID) (*domain.AlertIncident, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+incidentCols+` FROM alert_incidents WHERE id = $1`, string(id))
	inc, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "incident", ID: string(id)}
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

func (s *Store) Update(ctx context.Context, inc *domain.AlertIncident, expect domain.IncidentStatus) error {
	// Guarded update: the WHERE clause is the compare-and-swap on status.
	tag, err := s.pool.Exec(ctx,
		`UPDATE alert_incidents
		    SET status = $1,
		        acknowledged_at = $2, acknowledged_by = $3,
		        resolved_at = $4, resolved_by = $5, resolution_notes = $6
		  WHERE id = $7 AND status = $8`,
		string(inc.Status), inc.AcknowledgedAt, emptyNull(inc.AcknowledgedBy),
		inc.ResolvedAt, emptyNull(inc.ResolvedBy), emptyNull(inc.ResolutionNotes),
		string(inc.ID), string(expect),
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, inc.ID); getErr != nil {
			return getErr
		}
		return repo.ErrConflict
	}
	return nil
}

func (s *Store) Active(ctx context.Context) ([]domain.AlertIncident, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+incidentCols+`
  FROM alert_incidents
 WHERE status IN ('open', 'acknowledged')
 ORDER BY triggered_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("active incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertIncident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

func scanIncident(row pgx.Row) (*domain.AlertIncident, error) {
	var (
		inc    domain.AlertIncident
		id     string
		ruleID *string
		status string
	)
	if err := row.Scan(&id, &ruleID, &inc.RuleName, &inc.Severity,
		&inc.TriggeredValue, &inc.ThresholdValue, &inc.Condition,
		&inc.ServiceName, &inc.Endpoint, &status, &inc.TriggeredAt,
		&inc.AcknowledgedAt, &inc.AcknowledgedBy,
		&inc.ResolvedAt, &inc.ResolvedBy, &inc.ResolutionNotes); err != nil {
		return nil, err
	}
	inc.ID = domain.IncidentID(id)
	if ruleID != nil {
		v := domain.RuleID(*ruleID)
		inc.RuleID = &v
	}
	inc.Status = domain.IncidentStatus(status)
	return &inc, nil
}

// ---- RuleStore ----

func (s *Store) CreateRule(ctx context.Context, r *domain.AlertRule) error {
	if r.ID == "" {
		r.ID = domain.RuleID(uuid.NewString())
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_rules (id, name, is_active, last_triggered_at)
		 VALUES ($1,$2,$3,$4)`,
		string(r.ID), r.Name, r.IsActive, r.LastTriggeredAt)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *Store) ActiveRules(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, is_active, last_triggered_at
  FROM alert_rules
 WHERE is_active
 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("active rules: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertRule
	for rows.Next() {
		var (
			r  domain.AlertRule
			id string
		)
		if err := rows.Scan(&id, &r.Name, &r.IsActive, &r.LastTriggeredAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.ID = domain.RuleID(id)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetActive(ctx context.Context, id domain.RuleID, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alert_rules SET is_active = $1 WHERE id = $2`, active, string(id))
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Kind: "rule", ID: string(id)}
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, id domain.RuleID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alert_rules SET last_triggered_at = $1 WHERE id = $2`, at, string(id))
	if err != nil {
		return fmt.Errorf("touch rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Kind: "rule", ID: string(id)}
	}
	return nil
}

// ---- UptimeStore ----

func (s *Store) Upsert(ctx context.Context, r *domain.UptimeDailyRecord) error {
	day := r.Date.UTC().Truncate(24 * time.Hour)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO uptime_daily (service_name, day, uptime_percent)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (service_name, day)
		 DO UPDATE SET uptime_percent = EXCLUDED.uptime_percent`,
		r.ServiceName, day, r.UptimePercent)
	if err != nil {
		return fmt.Errorf("upsert uptime: %w", err)
	}
	return nil
}

func (s *Store) Range(ctx context.Context, since time.Time, service string) ([]domain.UptimeDailyRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT service_name, day, uptime_percent
  FROM uptime_daily
 WHERE day >= $1
   AND ($2 = '' OR service_name = $2)
 ORDER BY day ASC, service_name ASC`, since, service)
	if err != nil {
		return nil, fmt.Errorf("uptime range: %w", err)
	}
	defer rows.Close()

	var out []domain.UptimeDailyRecord
	for rows.Next() {
		var r domain.UptimeDailyRecord
		if err := rows.Scan(&r.ServiceName, &r.Date, &r.UptimePercent); err != nil {
			return nil, fmt.Errorf("scan uptime row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func emptyNull(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func zeroNullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
