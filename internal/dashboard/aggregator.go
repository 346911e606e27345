package dashboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/health"
	"github.com/opspulse/opspulse/internal/repo"
)

const (
	// healthSample caps the raw records pulled for the client-side
	// latest-per-service reduction. A service with no record inside the
	// sample is absent from the snapshot.
	healthSample = 50

	errorSample = 100

	uptimeLookback = 7 * 24 * time.Hour

	// DefaultTimeout bounds the whole snapshot composition, distinct
	// from per-probe timeouts.
	DefaultTimeout = 5 * time.Second
)

// Aggregator composes one consistent read-only snapshot from the four
// stores. Pure read path; no mutation.
type Aggregator struct {
	stores  repo.Stores
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func New(stores repo.Stores, log *zap.Logger) *Aggregator {
	return &Aggregator{
		stores:  stores,
		log:     log,
		timeout: DefaultTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type ErrorSummary struct {
	Entries []domain.ErrorLogEntry `json:"errors"`
	Counts  map[string]int         `json:"counts"`
	Total   int                    `json:"total"`
}

type UptimeSummary struct {
	Daily   []domain.UptimeDailyRecord `json:"daily"`
	Average float64                    `json:"average_percent"`
}

type Snapshot struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Window      domain.Window          `json:"range"`
	Health      health.Overview        `json:"health"`
	Errors      ErrorSummary           `json:"errors"`
	Incidents   []domain.AlertIncident `json:"active_incidents"`
	Uptime      UptimeSummary          `json:"uptime"`
}

// Snapshot runs the four sub-queries concurrently under one deadline
// and composes the result. Sub-queries are independent reads, so any
// failure fails the whole snapshot rather than returning a partial one.
func (a *Aggregator) Snapshot(ctx context.Context, window domain.Window) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	now := a.now()
	snap := Snapshot{GeneratedAt: now, Window: window}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	fail := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	wg.Add(4)

	go func() {
		defer wg.Done()
		recent, err := a.stores.Health.Recent(ctx, healthSample)
		if err != nil {
			fail(err)
			return
		}
		snap.Health = health.Summarize(latestPerService(recent))
	}()

	go func() {
		defer wg.Done()
		entries, err := a.stores.Errors.QueryErrors(ctx, window.Start(now), "", errorSample)
		if err != nil {
			fail(err)
			return
		}
		counts := make(map[string]int, 8)
		for _, e := range entries {
			counts[e.ErrorType]++
		}
		snap.Errors = ErrorSummary{Entries: entries, Counts: counts, Total: len(entries)}
	}()

	go func() {
		defer wg.Done()
		active, err := a.stores.Incidents.Active(ctx)
		if err != nil {
			fail(err)
			return
		}
		snap.Incidents = active
	}()

	go func() {
		defer wg.Done()
		rows, err := a.stores.Uptime.Range(ctx, now.Add(-uptimeLookback), "")
		if err != nil {
			fail(err)
			return
		}
		snap.Uptime = summarizeUptime(rows)
	}()

	wg.Wait()
	if errs != nil {
		return Snapshot{}, errs
	}
	return snap, nil
}

// latestPerService reduces a raw sample to one record per service,
// keeping the greatest CheckedAt.
func latestPerService(records []domain.HealthRecord) []domain.HealthRecord {
	latest := make(map[string]domain.HealthRecord, len(records))
	for _, r := range records {
		cur, ok := latest[r.ServiceName]
		if !ok || r.CheckedAt.After(cur.CheckedAt) {
			latest[r.ServiceName] = r
		}
	}
	out := make([]domain.HealthRecord, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out
}

// summarizeUptime averages across all returned daily rows, treating a
// missing percentage as 100.
func summarizeUptime(rows []domain.UptimeDailyRecord) UptimeSummary {
	s := UptimeSummary{Daily: rows, Average: 100}
	if len(rows) == 0 {
		return s
	}
	var sum float64
	for _, r := range rows {
		sum += r.UptimeValue()
	}
	s.Average = sum / float64(len(rows))
	return s
}
