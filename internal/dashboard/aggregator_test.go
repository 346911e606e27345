package dashboard

import (
	"context"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/repo/memory"
)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	m := memory.New()
	now := time.Now().UTC()

	_ = m.Append(ctx, &domain.HealthRecord{ServiceName: "api", Status: domain.StatusUnhealthy, CheckedAt: now.Add(-2 * time.Minute)})
	_ = m.Append(ctx, &domain.HealthRecord{ServiceName: "api", Status: domain.StatusHealthy, CheckedAt: now})
	_ = m.Append(ctx, &domain.HealthRecord{ServiceName: "web", Status: domain.StatusDegraded, CheckedAt: now})

	_ = m.AppendError(ctx, &domain.ErrorLogEntry{ServiceName: "api", ErrorType: "Timeout", ErrorMessage: "x", CreatedAt: now.Add(-time.Minute)})
	_ = m.AppendError(ctx, &domain.ErrorLogEntry{ServiceName: "api", ErrorType: "Timeout", ErrorMessage: "y", CreatedAt: now.Add(-2 * time.Minute)})

	_ = m.Create(ctx, &domain.AlertIncident{RuleName: "cpu-high", Severity: "critical", Status: domain.IncidentOpen, TriggeredAt: now})
	_ = m.Create(ctx, &domain.AlertIncident{RuleName: "old", Severity: "warning", Status: domain.IncidentResolved, TriggeredAt: now.Add(-time.Hour)})

	v := 95.0
	_ = m.Upsert(ctx, &domain.UptimeDailyRecord{ServiceName: "api", Date: now.Add(-24 * time.Hour), UptimePercent: &v})
	_ = m.Upsert(ctx, &domain.UptimeDailyRecord{ServiceName: "api", Date: now}) // nil percent reads as 100

	return m
}

func TestSnapshot_Composition(t *testing.T) {
	m := seed(t)
	a := New(m.Stores(), zap.NewNop())

	snap, err := a.Snapshot(context.Background(), domain.Window24h)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if snap.Health.Total != 2 || snap.Health.HealthyCount != 1 {
		t.Fatalf("health rollup wrong: %+v", snap.Health)
	}
	if snap.Health.Overall != domain.StatusDegraded {
		t.Fatalf("one degraded service should degrade overall, got %s", snap.Health.Overall)
	}
	if snap.Errors.Total != 2 || snap.Errors.Counts["Timeout"] != 2 {
		t.Fatalf("error summary wrong: %+v", snap.Errors)
	}
	if len(snap.Incidents) != 1 || snap.Incidents[0].RuleName != "cpu-high" {
		t.Fatalf("resolved incident leaked into snapshot: %+v", snap.Incidents)
	}
	if len(snap.Uptime.Daily) != 2 {
		t.Fatalf("want 2 uptime rows, got %d", len(snap.Uptime.Daily))
	}
	if snap.Uptime.Average != 97.5 {
		t.Fatalf("missing percent should average as 100: got %f", snap.Uptime.Average)
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	m := seed(t)
	a := New(m.Stores(), zap.NewNop())
	ctx := context.Background()

	s1, err := a.Snapshot(ctx, domain.Window24h)
	if err != nil {
		t.Fatalf("snapshot 1: %v", err)
	}
	s2, err := a.Snapshot(ctx, domain.Window24h)
	if err != nil {
		t.Fatalf("snapshot 2: %v", err)
	}

	if s1.Health.Total != s2.Health.Total ||
		s1.Health.HealthyCount != s2.Health.HealthyCount ||
		s1.Errors.Total != s2.Errors.Total ||
		len(s1.Incidents) != len(s2.Incidents) ||
		s1.Uptime.Average != s2.Uptime.Average {
		t.Fatalf("aggregates differ with no writes in between:\n%+v\n%+v", s1, s2)
	}
	if !reflect.DeepEqual(s1.Errors.Counts, s2.Errors.Counts) {
		t.Fatalf("counts differ: %v vs %v", s1.Errors.Counts, s2.Errors.Counts)
	}
}

func TestSnapshot_EmptyStores(t *testing.T) {
	a := New(memory.New().Stores(), zap.NewNop())
	snap, err := a.Snapshot(context.Background(), domain.Window24h)
	if err != nil {
		t.Fatalf("snapshot on empty stores: %v", err)
	}
	if snap.Health.Total != 0 || snap.Errors.Total != 0 || len(snap.Incidents) != 0 {
		t.Fatalf("expected empty snapshot: %+v", snap)
	}
	if snap.Uptime.Average != 100 {
		t.Fatalf("empty uptime should average 100, got %f", snap.Uptime.Average)
	}
}
