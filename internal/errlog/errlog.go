package errlog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/repo"
)

// Service accepts structured error reports and answers time-windowed
// queries over them.
type Service struct {
	store repo.ErrorStore
	log   *zap.Logger
	now   func() time.Time
}

func New(store repo.ErrorStore, log *zap.Logger) *Service {
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Report is one incoming error. ServiceName, ErrorType and ErrorMessage
// are required; everything else is optional.
type Report struct {
	ServiceName  string            `json:"serviceName"`
	ErrorType    string            `json:"errorType"`
	ErrorMessage string            `json:"errorMessage"`
	StackTrace   string            `json:"stackTrace,omitempty"`
	Endpoint     string            `json:"endpoint,omitempty"`
	UserID       string            `json:"userId,omitempty"`
	RequestID    string            `json:"requestId,omitempty"`
	UserImpact   domain.UserImpact `json:"userImpact,omitempty"`
}

// Log validates, fingerprints and appends the report, returning the new
// entry's id. Validation happens before any write.
func (s *Service) Log(ctx context.Context, rep Report) (domain.ErrorID, error) {
	switch {
	case rep.ServiceName == "":
		return "", domain.Required("serviceName")
	case rep.ErrorType == "":
		return "", domain.Required("errorType")
	case rep.ErrorMessage == "":
		return "", domain.Required("errorMessage")
	}

	impact := rep.UserImpact
	switch impact {
	case domain.ImpactMinor, domain.ImpactModerate, domain.ImpactSevere:
	case "":
		impact = domain.ImpactMinor
	default:
		return "", &domain.ValidationError{Field: "userImpact", Reason: "unrecognized value"}
	}

	entry := &domain.ErrorLogEntry{
		ServiceName:  rep.ServiceName,
		ErrorType:    rep.ErrorType,
		ErrorMessage: rep.ErrorMessage,
		StackTrace:   rep.StackTrace,
		Endpoint:     rep.Endpoint,
		UserID:       rep.UserID,
		RequestID:    rep.RequestID,
		ErrorHash:    domain.Fingerprint(rep.ServiceName, rep.ErrorType, rep.ErrorMessage, rep.Endpoint),
		UserImpact:   impact,
		CreatedAt:    s.now(),
	}
	if err := s.store.AppendError(ctx, entry); err != nil {
		return "", err
	}
	s.log.Info("error_logged",
		zap.String("service", entry.ServiceName),
		zap.String("type", entry.ErrorType),
		zap.String("hash", entry.ErrorHash),
		zap.String("impact", string(entry.UserImpact)),
	)
	return entry.ID, nil
}

// QueryResult carries the windowed entries plus per-type counts over
// the returned (post-limit) set.
type QueryResult struct {
	Entries []domain.ErrorLogEntry `json:"errors"`
	Counts  map[string]int         `json:"counts"`
	Total   int                    `json:"total"`
}

// Query returns entries inside the window, newest first, capped at
// limit. Counts reflect only the returned entries.
func (s *Service) Query(ctx context.Context, window domain.Window, service string, limit int) (QueryResult, error) {
	limit = domain.ClampLimit(limit)
	entries, err := s.store.QueryErrors(ctx, window.Start(s.now()), service, limit)
	if err != nil {
		return QueryResult{}, err
	}
	counts := make(map[string]int, 8)
	for _, e := range entries {
		counts[e.ErrorType]++
	}
	return QueryResult{Entries: entries, Counts: counts, Total: len(entries)}, nil
}
