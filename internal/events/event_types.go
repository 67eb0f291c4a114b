package events

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSLABreached    EventType = "sla_breached"
	EventSLAAtRisk      EventType = "sla_at_risk"
	EventSLADailyReport EventType = "sla_daily_report"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	// SubjectID is the request id for status events and the admin id for reports.
	SubjectID string      `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SLABreachPayload is published when a request moves into breached.
type SLABreachPayload struct {
	RequestID     string             `json:"request_id"`
	RequestNumber string             `json:"request_number"`
	RequestType   domain.RequestType `json:"request_type"`
	SubscriberID  string             `json:"subscriber_id"`
	ProviderID    *string            `json:"provider_id,omitempty"`
	SLADeadline   time.Time          `json:"sla_deadline"`
	BreachedAt    time.Time          `json:"breached_at"`
}

// SLAAtRiskPayload is published when a request moves into at_risk.
type SLAAtRiskPayload struct {
	RequestID      string             `json:"request_id"`
	RequestNumber  string             `json:"request_number"`
	RequestType    domain.RequestType `json:"request_type"`
	SubscriberID   string             `json:"subscriber_id"`
	ProviderID     *string            `json:"provider_id,omitempty"`
	SLADeadline    time.Time          `json:"sla_deadline"`
	HoursRemaining float64            `json:"hours_remaining"`
}

// DailySummary totals one day of requests.
type DailySummary struct {
	TotalActive int `json:"total_active"`
	Breached    int `json:"breached"`
	AtRisk      int `json:"at_risk"`
	OnTrack     int `json:"on_track"`
}

// SLADailyReportPayload is published once per report recipient.
type SLADailyReportPayload struct {
	AdminUserID   string                                     `json:"admin_user_id"`
	AdminEmail    string                                     `json:"admin_email"`
	ReportDate    time.Time                                  `json:"report_date"`
	Summary       DailySummary                               `json:"summary"`
	ByRequestType map[domain.RequestType]domain.StatusCounts `json:"by_request_type"`
}
