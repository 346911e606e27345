package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/repo"
)

// Service accepts named numeric measurements and answers time-windowed
// queries, mirroring the error log's window and ordering semantics.
type Service struct {
	store repo.MetricStore
	log   *zap.Logger
	now   func() time.Time
}

func New(store repo.MetricStore, log *zap.Logger) *Service {
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Sample is one incoming measurement. Value is a pointer so that an
// explicit zero survives: only absence is invalid, never the number 0.
type Sample struct {
	MetricName  string            `json:"metricName"`
	Value       *float64          `json:"value"`
	ServiceName string            `json:"serviceName"`
	MetricType  domain.MetricType `json:"metricType,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Record validates and appends the sample, returning the new metric id.
func (s *Service) Record(ctx context.Context, sm Sample) (domain.MetricID, error) {
	switch {
	case sm.MetricName == "":
		return "", domain.Required("metricName")
	case sm.Value == nil:
		return "", domain.Required("value")
	case sm.ServiceName == "":
		return "", domain.Required("serviceName")
	}

	mtype := sm.MetricType
	switch mtype {
	case domain.MetricGauge, domain.MetricCounter, domain.MetricHistogram:
	case "":
		mtype = domain.MetricGauge
	default:
		return "", &domain.ValidationError{Field: "metricType", Reason: "unrecognized value"}
	}

	m := &domain.PerformanceMetric{
		MetricName:  sm.MetricName,
		MetricType:  mtype,
		Value:       *sm.Value,
		Unit:        sm.Unit,
		ServiceName: sm.ServiceName,
		Endpoint:    sm.Endpoint,
		Tags:        sm.Tags,
		RecordedAt:  s.now(),
	}
	if err := s.store.AppendMetric(ctx, m); err != nil {
		return "", err
	}
	s.log.Debug("metric_recorded",
		zap.String("metric", m.MetricName),
		zap.String("service", m.ServiceName),
		zap.Float64("value", m.Value),
	)
	return m.ID, nil
}

type QueryResult struct {
	Metrics []domain.PerformanceMetric `json:"metrics"`
	Total   int                        `json:"total"`
}

// Query returns metrics inside the window, newest first, capped at limit.
func (s *Service) Query(ctx context.Context, window domain.Window, service string, limit int) (QueryResult, error) {
	limit = domain.ClampLimit(limit)
	out, err := s.store.QueryMetrics(ctx, window.Start(s.now()), service, limit)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{Metrics: out, Total: len(out)}, nil
}
