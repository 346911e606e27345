package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/opspulse/opspulse/internal/domain"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 10 * time.Second

type HTTPChecker struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{
		Client:  &http.Client{},
		Timeout: timeout,
	}
}

// Check issues a HEAD request (no body fetch) with a cancellation timer
// and classifies the outcome. A transport error or timeout is a normal,
// recorded outcome, never a returned error.
func (h *HTTPChecker) Check(ctx context.Context, target domain.ServiceTarget) Result {
	cctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	start := time.Now()
	res := Result{Target: target, CheckedAt: start.UTC()}

	req, err := http.NewRequestWithContext(cctx, http.MethodHead, target.URL, nil)
	if err != nil {
		res.Status = domain.StatusUnhealthy
		res.ErrorMessage = err.Error()
		res.ResponseTimeMS = elapsedMS(start)
		return res
	}

	resp, err := h.Client.Do(req)
	res.ResponseTimeMS = elapsedMS(start)
	if err != nil {
		res.Status = domain.StatusUnhealthy
		res.ErrorMessage = err.Error()
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.Status = Classify(resp.StatusCode)
	if res.Status != domain.StatusHealthy {
		res.ErrorMessage = resp.Status
	}
	return res
}

// Classify maps an HTTP status code to a health status: success is
// healthy, server errors are unhealthy, anything else (3xx/4xx) is
// degraded.
func Classify(statusCode int) domain.HealthStatus {
	switch {
	case statusCode < 300:
		return domain.StatusHealthy
	case statusCode >= 500:
		return domain.StatusUnhealthy
	default:
		return domain.StatusDegraded
	}
}

func elapsedMS(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}
