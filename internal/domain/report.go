package domain

import "time"

// StatusUpdate records one persisted status change made by a sweep.
type StatusUpdate struct {
	RequestID      string      `json:"request_id"`
	RequestKind    RequestType `json:"request_kind"`
	RequestNumber  string      `json:"request_number"`
	PreviousStatus *SLAStatus  `json:"previous_status,omitempty"`
	NewStatus      SLAStatus   `json:"new_status"`
	IsBreached     bool        `json:"is_breached"`
	IsAtRisk       bool        `json:"is_at_risk"`
	SubscriberID   string      `json:"subscriber_id"`
	ProviderID     *string     `json:"provider_id,omitempty"`
}

// KindSweepSummary holds the per-kind counters of a sweep.
type KindSweepSummary struct {
	Checked  int  `json:"checked"`
	Updated  int  `json:"updated"`
	Breached int  `json:"breached"`
	AtRisk   int  `json:"at_risk"`
	Errors   int  `json:"errors"`
	Skipped  bool `json:"skipped"`
}

// SweepReport is the outcome of one sweep across all request kinds.
type SweepReport struct {
	ID         string                           `json:"id"`
	StartedAt  time.Time                        `json:"started_at"`
	FinishedAt time.Time                        `json:"finished_at"`
	Checked    int                              `json:"checked"`
	Updated    int                              `json:"updated"`
	Breached   int                              `json:"breached"`
	AtRisk     int                              `json:"at_risk"`
	ByKind     map[RequestType]KindSweepSummary `json:"by_kind"`
	Updates    []StatusUpdate                   `json:"updates"`
	Errors     []string                         `json:"errors"`
	// Skipped lists kinds left unfinished because the run deadline expired.
	Skipped []RequestType `json:"skipped,omitempty"`
}

// Duration is the wall time the sweep took.
func (r *SweepReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// StatusCounts aggregates requests by SLA status.
type StatusCounts struct {
	Total    int `json:"total"`
	Breached int `json:"breached"`
	AtRisk   int `json:"at_risk"`
	OnTrack  int `json:"on_track"`
}

// Add counts one request with status s.
func (c *StatusCounts) Add(s SLAStatus) {
	c.Total++
	switch s {
	case SLAStatusBreached:
		c.Breached++
	case SLAStatusAtRisk:
		c.AtRisk++
	default:
		c.OnTrack++
	}
}

// Merge adds other into c.
func (c *StatusCounts) Merge(other StatusCounts) {
	c.Total += other.Total
	c.Breached += other.Breached
	c.AtRisk += other.AtRisk
	c.OnTrack += other.OnTrack
}

// DailyReport summarises the requests created on ReportDate.
type DailyReport struct {
	ReportDate    time.Time                    `json:"report_date"`
	GeneratedAt   time.Time                    `json:"generated_at"`
	Summary       StatusCounts                 `json:"summary"`
	ByRequestType map[RequestType]StatusCounts `json:"by_request_type"`
	Recipients    int                          `json:"recipients"`
	Errors        []string                     `json:"errors,omitempty"`
}

// ReportRecipient is an administrator who receives the daily summary.
type ReportRecipient struct {
	ID    string
	Email string
	Name  string
}
