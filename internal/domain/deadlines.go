package domain

import (
	"math"
	"time"
)

// AtRiskThreshold is the elapsed percentage at which an open dimension becomes at risk.
const AtRiskThreshold = 75

// Dimension selects one of the SLA deadlines.
type Dimension string

const (
	DimensionResponse   Dimension = "response"
	DimensionResolution Dimension = "resolution"
	DimensionEscalation Dimension = "escalation"
)

// SLADeadlines are the absolute deadlines derived from a budget and a start instant.
type SLADeadlines struct {
	CreatedAt          time.Time
	ResponseDeadline   time.Time
	ResolutionDeadline time.Time
	EscalationDeadline *time.Time
}

// CalculateDeadlines converts a budget into absolute deadlines starting at start.
func CalculateDeadlines(budget TimeBudget, start time.Time) SLADeadlines {
	d := SLADeadlines{
		CreatedAt:          start,
		ResponseDeadline:   start.Add(minutes(budget.ResponseMinutes())),
		ResolutionDeadline: start.Add(minutes(budget.ResolutionMinutes())),
	}
	if esc := budget.EscalationMinutes(); esc != nil {
		t := start.Add(minutes(*esc))
		d.EscalationDeadline = &t
	}
	return d
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// IsResponseBreached reports whether now is past the response deadline.
func (d SLADeadlines) IsResponseBreached(now time.Time) bool {
	return now.After(d.ResponseDeadline)
}

// IsResolutionBreached reports whether now is past the resolution deadline.
func (d SLADeadlines) IsResolutionBreached(now time.Time) bool {
	return now.After(d.ResolutionDeadline)
}

// IsEscalationRequired reports whether an escalation deadline exists and has passed.
func (d SLADeadlines) IsEscalationRequired(now time.Time) bool {
	return d.EscalationDeadline != nil && now.After(*d.EscalationDeadline)
}

// Deadline returns the deadline for dim; ok is false for a missing escalation.
func (d SLADeadlines) Deadline(dim Dimension) (time.Time, bool) {
	switch dim {
	case DimensionResponse:
		return d.ResponseDeadline, true
	case DimensionResolution:
		return d.ResolutionDeadline, true
	case DimensionEscalation:
		if d.EscalationDeadline == nil {
			return time.Time{}, false
		}
		return *d.EscalationDeadline, true
	}
	return time.Time{}, false
}

// ElapsedPercent is the share of the dimension window consumed at now, clamped to [0,100].
func (d SLADeadlines) ElapsedPercent(now time.Time, dim Dimension) int {
	deadline, ok := d.Deadline(dim)
	if !ok {
		return 0
	}
	total := deadline.Sub(d.CreatedAt)
	if total <= 0 {
		if now.After(deadline) {
			return 100
		}
		return 0
	}
	pct := math.Round(100 * float64(now.Sub(d.CreatedAt)) / float64(total))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

// TimeRemaining is the non-negative time left before the dimension deadline.
func (d SLADeadlines) TimeRemaining(now time.Time, dim Dimension) time.Duration {
	deadline, ok := d.Deadline(dim)
	if !ok {
		return 0
	}
	if left := deadline.Sub(now); left > 0 {
		return left
	}
	return 0
}
