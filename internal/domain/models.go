package domain

import "time"

type IncidentID string
type ErrorID string
type MetricID string
type RuleID string

// ServiceTarget is one entry of the injected probe configuration.
// Immutable once loaded; the prober never mutates it.
type ServiceTarget struct {
	Name string      `json:"name"`
	URL  string      `json:"url"`
	Type ServiceType `json:"service_type"`
}

// HealthRecord is one probe snapshot. Append-only; "current health" of a
// service is its record with the greatest CheckedAt.
type HealthRecord struct {
	ServiceName     string       `json:"service_name"`
	ServiceURL      string       `json:"service_url"`
	ServiceType     ServiceType  `json:"service_type"`
	Status          HealthStatus `json:"status"`
	StatusCode      int          `json:"status_code,omitempty"`
	ResponseTimeMS  float64      `json:"response_time_ms"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	CheckedAt       time.Time    `json:"checked_at"`
	LastHealthyAt   *time.Time   `json:"last_healthy_at,omitempty"`
	LastUnhealthyAt *time.Time   `json:"last_unhealthy_at,omitempty"`
}

// ErrorLogEntry is one reported application error. Append-only.
type ErrorLogEntry struct {
	ID           ErrorID    `json:"id"`
	ServiceName  string     `json:"service_name"`
	ErrorType    string     `json:"error_type"`
	ErrorMessage string     `json:"error_message"`
	StackTrace   string     `json:"stack_trace,omitempty"`
	Endpoint     string     `json:"endpoint,omitempty"`
	UserID       string     `json:"user_id,omitempty"`
	RequestID    string     `json:"request_id,omitempty"`
	ErrorHash    string     `json:"error_hash"`
	UserImpact   UserImpact `json:"user_impact"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PerformanceMetric is one numeric measurement. Append-only.
type PerformanceMetric struct {
	ID          MetricID          `json:"id"`
	MetricName  string            `json:"metric_name"`
	MetricType  MetricType        `json:"metric_type"`
	Value       float64           `json:"value"`
	Unit        string            `json:"unit,omitempty"`
	ServiceName string            `json:"service_name"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	RecordedAt  time.Time         `json:"recorded_at"`
}

// AlertRule is mutated only to toggle IsActive and to stamp
// LastTriggeredAt when an incident fires against it.
type AlertRule struct {
	ID              RuleID     `json:"id"`
	Name            string     `json:"name"`
	IsActive        bool       `json:"is_active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
}

// AlertIncident progresses open -> acknowledged -> resolved (open ->
// resolved directly is allowed). Never deleted.
type AlertIncident struct {
	ID              IncidentID     `json:"id"`
	RuleID          *RuleID        `json:"rule_id,omitempty"`
	RuleName        string         `json:"rule_name"`
	Severity        string         `json:"severity"`
	TriggeredValue  *float64       `json:"triggered_value,omitempty"`
	ThresholdValue  *float64       `json:"threshold_value,omitempty"`
	Condition       string         `json:"condition,omitempty"`
	ServiceName     string         `json:"service_name,omitempty"`
	Endpoint        string         `json:"endpoint,omitempty"`
	Status          IncidentStatus `json:"status"`
	TriggeredAt     time.Time      `json:"triggered_at"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  string         `json:"acknowledged_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy      string         `json:"resolved_by,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
}

// UptimeDailyRecord is one row per service per calendar day. Date is
// truncated to midnight UTC. A missing UptimePercent reads as 100.
type UptimeDailyRecord struct {
	ServiceName   string    `json:"service_name"`
	Date          time.Time `json:"date"`
	UptimePercent *float64  `json:"uptime_percent,omitempty"`
}

// UptimeValue returns the row's percentage, treating absence as fully up.
func (u UptimeDailyRecord) UptimeValue() float64 {
	if u.UptimePercent == nil {
		return 100
	}
	return *u.UptimePercent
}
