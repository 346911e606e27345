package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/dashboard"
	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/errlog"
	"github.com/opspulse/opspulse/internal/health"
	apimw "github.com/opspulse/opspulse/internal/httpapi/middleware"
	"github.com/opspulse/opspulse/internal/incident"
	"github.com/opspulse/opspulse/internal/metrics"
	"github.com/opspulse/opspulse/internal/probe"
	"github.com/opspulse/opspulse/internal/repo"
)

type Server struct {
	Logger    *zap.Logger
	Targets   []domain.ServiceTarget
	Runner    *probe.Runner
	Recorder  *health.Recorder
	Errors    *errlog.Service
	Metrics   *metrics.Service
	Incidents *incident.Manager
	Dash      *dashboard.Aggregator
	Uptime    repo.UptimeStore

	configured bool
}

func NewServer(
	logger *zap.Logger,
	targets []domain.ServiceTarget,
	runner *probe.Runner,
	recorder *health.Recorder,
	errSvc *errlog.Service,
	metricSvc *metrics.Service,
	incidents *incident.Manager,
	dash *dashboard.Aggregator,
	uptime repo.UptimeStore,
) *Server {
	return &Server{
		Logger:     logger,
		Targets:    targets,
		Runner:     runner,
		Recorder:   recorder,
		Errors:     errSvc,
		Metrics:    metricSvc,
		Incidents:  incidents,
		Dash:       dash,
		Uptime:     uptime,
		configured: true,
	}
}

// NewUnconfigured builds a server whose data routes all answer
// "server not configured". Used when no storage credentials are set.
func NewUnconfigured(logger *zap.Logger) *Server {
	return &Server{Logger: logger}
}

func (s *Server) Router(keys apimw.Keys, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireConfigured)

		// read surface
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(keys))
			r.Use(apimw.RateLimit(publicRPM, publicBurst))
			r.Get("/health", s.handleHealth)
			r.Get("/errors", s.handleListErrors)
			r.Get("/metrics", s.handleListMetrics)
			r.Get("/alerts", s.handleListAlerts)
			r.Get("/uptime", s.handleUptime)
			r.Get("/dashboard", s.handleDashboard)
		})

		// mutation surface
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Use(apimw.RateLimit(adminRPM, adminBurst))
			r.Post("/health-check", s.handleHealthCheck)
			r.Post("/errors", s.handleLogError)
			r.Post("/metrics", s.handleRecordMetric)
			r.Post("/alerts", s.handleTriggerAlert)
			r.Patch("/alerts/{incidentID}", s.handleTransition)
			r.Post("/rules", s.handleCreateRule)
			r.Patch("/rules/{ruleID}", s.handleSetRuleActive)
		})
	})

	return r
}

// requireConfigured fails fast before any store access when storage
// credentials are absent.
func (s *Server) requireConfigured(next http.Handler) http.Handler {
	if s.configured {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErr(w, domain.ErrNotConfigured)
	})
}

// ---- read handlers ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ov, err := s.Recorder.LatestPerService(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleListErrors(w http.ResponseWriter, r *http.Request) {
	window, service, limit := listParams(r)
	res, err := s.Errors.Query(r.Context(), window, service, limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	window, service, limit := listParams(r)
	res, err := s.Metrics.Query(r.Context(), window, service, limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.Incidents.ActiveIncidents(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	rules, err := s.Incidents.ActiveRules(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"rules":     rules,
		"count":     len(incidents),
	})
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	window := domain.ParseWindow(r.URL.Query().Get("range"))
	service := r.URL.Query().Get("service")

	rows, err := s.Uptime.Range(r.Context(), window.Start(nowUTC()), service)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	avg := 100.0
	if len(rows) > 0 {
		var sum float64
		for _, row := range rows {
			sum += row.UptimeValue()
		}
		avg = sum / float64(len(rows))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"daily":           rows,
		"average_percent": avg,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	window := domain.ParseWindow(r.URL.Query().Get("range"))
	snap, err := s.Dash.Snapshot(r.Context(), window)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// ---- mutation handlers ----

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	results := s.Runner.Sweep(r.Context(), s.Targets)

	var storeErr error
	for _, res := range results {
		storeErr = multierr.Append(storeErr, s.Recorder.Record(r.Context(), res))
	}
	if storeErr != nil {
		s.writeErr(w, storeErr)
		return
	}

	s.Logger.Info("health_check_run", zap.Int("targets", len(results)))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleLogError(w http.ResponseWriter, r *http.Request) {
	var rep errlog.Report
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		s.writeErr(w, &domain.ValidationError{Field: "body", Reason: "malformed json"})
		return
	}
	id, err := s.Errors.Log(r.Context(), rep)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleRecordMetric(w http.ResponseWriter, r *http.Request) {
	var sm metrics.Sample
	if err := json.NewDecoder(r.Body).Decode(&sm); err != nil {
		s.writeErr(w, &domain.ValidationError{Field: "body", Reason: "malformed json"})
		return
	}
	id, err := s.Metrics.Record(r.Context(), sm)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleTriggerAlert(w http.ResponseWriter, r *http.Request) {
	var in incident.TriggerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeErr(w, &domain.ValidationError{Field: "body", Reason: "malformed json"})
		return
	}
	inc, err := s.Incidents.Trigger(r.Context(), in)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, inc)
}

type transitionPayload struct {
	Status domain.IncidentStatus `json:"status"`
	Actor  string                `json:"actor,omitempty"`
	Notes  string                `json:"notes,omitempty"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id := domain.IncidentID(chi.URLParam(r, "incidentID"))
	var p transitionPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeErr(w, &domain.ValidationError{Field: "body", Reason: "malformed json"})
		return
	}
	inc, err := s.Incidents.Transition(r.Context(), id, p.Status, p.Actor, p.Notes)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inc)
}

type rulePayload struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"isActive,omitempty"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var p rulePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeErr(w, &domain.ValidationError{Field: "body", Reason: "malformed json"})
		return
	}
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	rule, err := s.Incidents.CreateRule(r.Context(), p.Name, active)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleSetRuleActive(w http.ResponseWriter, r *http.Request) {
	id := domain.RuleID(chi.URLParam(r, "ruleID"))
	var p rulePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.IsActive == nil {
		s.writeErr(w, &domain.ValidationError{Field: "isActive", Reason: "required"})
		return
	}
	if err := s.Incidents.SetRuleActive(r.Context(), id, *p.IsActive); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": *p.IsActive})
}

// ---- helpers ----

func nowUTC() time.Time { return time.Now().UTC() }

func listParams(r *http.Request) (domain.Window, string, int) {
	q := r.URL.Query()
	window := domain.ParseWindow(q.Get("range"))
	service := q.Get("service")
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	return window, service, limit
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("response_encode_error", zap.Error(err))
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var (
		code = http.StatusInternalServerError
		msg  = "internal error"
	)
	switch {
	case domain.IsValidation(err):
		code = http.StatusBadRequest
		msg = err.Error()
	case domain.IsNotFound(err):
		code = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, domain.ErrNotConfigured):
		msg = domain.ErrNotConfigured.Error()
	default:
		s.Logger.Error("request_failed", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
