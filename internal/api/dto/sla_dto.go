package dto

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// DeadlineRequest asks for the deadlines of a new request.
type DeadlineRequest struct {
	RequestType string     `json:"request_type"`
	Priority    string     `json:"priority"`
	Start       *time.Time `json:"start"`
}

// DeadlineResponse carries stamped deadlines.
type DeadlineResponse struct {
	RequestType        domain.RequestType `json:"request_type"`
	Priority           domain.Priority    `json:"priority"`
	PolicyID           *string            `json:"policy_id"`
	CreatedAt          time.Time          `json:"created_at"`
	ResponseDeadline   time.Time          `json:"response_deadline"`
	ResolutionDeadline time.Time          `json:"resolution_deadline"`
	EscalationDeadline *time.Time         `json:"escalation_deadline"`
}

// SnapshotRequest describes an existing request to evaluate.
type SnapshotRequest struct {
	RequestID          string     `json:"request_id"`
	RequestNumber      string     `json:"request_number"`
	RequestType        string     `json:"request_type"`
	Priority           string     `json:"priority"`
	CreatedAt          time.Time  `json:"created_at"`
	RespondedAt        *time.Time `json:"responded_at"`
	ResolvedAt         *time.Time `json:"resolved_at"`
	SLADeadline        *time.Time `json:"sla_deadline"`
	ResponseDeadline   *time.Time `json:"response_deadline"`
	EscalationDeadline *time.Time `json:"escalation_deadline"`
}

// UrgencyRequest lists requests to rank.
type UrgencyRequest struct {
	Items []SnapshotRequest `json:"items"`
}

// AtRiskResponse flags dimensions past the risk threshold.
type AtRiskResponse struct {
	Response   bool `json:"response"`
	Resolution bool `json:"resolution"`
}

// BreachResponse describes one overdue dimension.
type BreachResponse struct {
	Dimension domain.Dimension `json:"dimension"`
	Deadline  time.Time        `json:"deadline"`
	OverdueMs int64            `json:"overdue_ms"`
}

// StatusResponse is the live status of a request.
type StatusResponse struct {
	RequestID          string           `json:"request_id"`
	Status             domain.SLAStatus `json:"status"`
	ResponseStatus     domain.SLAStatus `json:"response_status"`
	ResolutionStatus   domain.SLAStatus `json:"resolution_status"`
	AtRisk             AtRiskResponse   `json:"at_risk"`
	UrgencyScore       int              `json:"urgency_score"`
	TimeRemainingMs    int64            `json:"time_remaining_ms"`
	PercentElapsed     int              `json:"percent_elapsed"`
	EscalationRequired bool             `json:"escalation_required"`
	PolicyID           *string          `json:"policy_id"`
	ResponseDeadline   time.Time        `json:"response_deadline"`
	ResolutionDeadline time.Time        `json:"resolution_deadline"`
	EscalationDeadline *time.Time       `json:"escalation_deadline"`
	Breaches           []BreachResponse `json:"breaches"`
	EvaluatedAt        time.Time        `json:"evaluated_at"`
}

// DailyReportRequest selects the report day (YYYY-MM-DD); empty means yesterday.
type DailyReportRequest struct {
	Date string `json:"date"`
}
