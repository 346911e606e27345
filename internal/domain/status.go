package domain

// HealthStatus classifies the latest probe outcome for a service.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

type ServiceType string

const (
	ServiceWebsite  ServiceType = "website"
	ServiceDatabase ServiceType = "database"
	ServiceAPI      ServiceType = "api"
)

type UserImpact string

const (
	ImpactMinor    UserImpact = "minor"
	ImpactModerate UserImpact = "moderate"
	ImpactSevere   UserImpact = "severe"
)

type MetricType string

const (
	MetricGauge     MetricType = "gauge"
	MetricCounter   MetricType = "counter"
	MetricHistogram MetricType = "histogram"
)

// IncidentStatus is the incident lifecycle state.
type IncidentStatus string

const (
	IncidentOpen         IncidentStatus = "open"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
)

// Valid reports whether s is one of the three recognized states.
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentOpen, IncidentAcknowledged, IncidentResolved:
		return true
	}
	return false
}

// Active reports whether an incident in state s still needs attention.
func (s IncidentStatus) Active() bool {
	return s == IncidentOpen || s == IncidentAcknowledged
}

// transitions is the allowed lifecycle edge set. Resolved is terminal;
// acknowledgement may be skipped but never revisited.
var transitions = map[IncidentStatus][]IncidentStatus{
	IncidentOpen:         {IncidentAcknowledged, IncidentResolved},
	IncidentAcknowledged: {IncidentResolved},
	IncidentResolved:     {},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func (s IncidentStatus) CanTransition(to IncidentStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
