package domain

import "time"

// RequestSLASnapshot is the SLA-relevant projection of a request owned by another context.
type RequestSLASnapshot struct {
	RequestID     string
	RequestNumber string
	RequestType   RequestType
	Priority      Priority
	CreatedAt     time.Time
	RespondedAt   *time.Time
	ResolvedAt    *time.Time
	// SLADeadline is the stamped resolution deadline.
	SLADeadline        *time.Time
	ResponseDeadline   *time.Time
	EscalationDeadline *time.Time
	CurrentStatus      *SLAStatus
	SubscriberID       string
	ProviderID         *string
}

// Responded reports whether a response has been recorded.
func (s RequestSLASnapshot) Responded() bool {
	return s.RespondedAt != nil
}

// Resolved reports whether the request has been resolved.
func (s RequestSLASnapshot) Resolved() bool {
	return s.ResolvedAt != nil
}

// HasChanged reports whether status differs from the persisted status.
func (s RequestSLASnapshot) HasChanged(status SLAStatus) bool {
	return s.CurrentStatus == nil || *s.CurrentStatus != status
}
