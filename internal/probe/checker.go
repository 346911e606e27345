package probe

import (
	"context"
	"time"

	"github.com/opspulse/opspulse/internal/domain"
)

// Result is the unified outcome of one probe.
//
// StatusCode is the HTTP status when available; 0 for transport/DNS
// errors. ResponseTimeMS is wall-clock elapsed time from issue to
// completion or failure, recorded regardless of outcome.
type Result struct {
	Target         domain.ServiceTarget `json:"target"`
	Status         domain.HealthStatus  `json:"status"`
	StatusCode     int                  `json:"status_code,omitempty"`
	ResponseTimeMS float64              `json:"response_time_ms"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	CheckedAt      time.Time            `json:"checked_at"`
}

// Checker performs a single reachability check against one target.
type Checker interface {
	Check(ctx context.Context, target domain.ServiceTarget) Result
}
