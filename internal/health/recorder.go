package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/probe"
	"github.com/opspulse/opspulse/internal/repo"
)

// Recorder persists probe results and answers "latest status per
// service". The underlying log is write-once; a new record supersedes,
// never edits.
type Recorder struct {
	store repo.HealthStore
	log   *zap.Logger
}

func NewRecorder(store repo.HealthStore, log *zap.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Record appends one HealthRecord for a probe result. LastHealthyAt and
// LastUnhealthyAt are mutually exclusive per write; degraded sets
// neither.
func (r *Recorder) Record(ctx context.Context, res probe.Result) error {
	rec := &domain.HealthRecord{
		ServiceName:    res.Target.Name,
		ServiceURL:     res.Target.URL,
		ServiceType:    res.Target.Type,
		Status:         res.Status,
		StatusCode:     res.StatusCode,
		ResponseTimeMS: res.ResponseTimeMS,
		ErrorMessage:   res.ErrorMessage,
		CheckedAt:      res.CheckedAt,
	}
	switch res.Status {
	case domain.StatusHealthy:
		t := res.CheckedAt
		rec.LastHealthyAt = &t
	case domain.StatusUnhealthy:
		t := res.CheckedAt
		rec.LastUnhealthyAt = &t
	}
	if err := r.store.Append(ctx, rec); err != nil {
		return err
	}
	r.log.Debug("health_recorded",
		zap.String("service", rec.ServiceName),
		zap.String("status", string(rec.Status)),
		zap.Float64("response_ms", rec.ResponseTimeMS),
	)
	return nil
}

// Overview is the per-service latest state plus the overall rollup.
type Overview struct {
	Services     []domain.HealthRecord `json:"services"`
	Overall      domain.HealthStatus   `json:"overall_status"`
	HealthyCount int                   `json:"healthy_count"`
	Total        int                   `json:"total_services"`
	CheckedAt    time.Time             `json:"checked_at"`
}

// LatestPerService returns each service's most recent record. The
// overall status is healthy only when every latest record is healthy.
func (r *Recorder) LatestPerService(ctx context.Context) (Overview, error) {
	latest, err := r.store.Latest(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Summarize(latest), nil
}

// Summarize rolls a latest-per-service slice into an Overview.
func Summarize(latest []domain.HealthRecord) Overview {
	ov := Overview{
		Services:  latest,
		Overall:   domain.StatusHealthy,
		Total:     len(latest),
		CheckedAt: time.Now().UTC(),
	}
	for _, rec := range latest {
		if rec.Status == domain.StatusHealthy {
			ov.HealthyCount++
		} else {
			ov.Overall = domain.StatusDegraded
		}
	}
	return ov
}
