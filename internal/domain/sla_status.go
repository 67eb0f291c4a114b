package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidEnum is returned when a persisted or submitted enum value is unknown.
	ErrInvalidEnum = errors.New("invalid enum value")
	// ErrInvalidBudget is matched by every BudgetError.
	ErrInvalidBudget = errors.New("invalid time budget")
)

// SLAStatus is the derived compliance state of a request.
type SLAStatus string

const (
	SLAStatusOnTrack  SLAStatus = "on_track"
	SLAStatusAtRisk   SLAStatus = "at_risk"
	SLAStatusBreached SLAStatus = "breached"
)

// ParseSLAStatus validates a raw status string.
func ParseSLAStatus(raw string) (SLAStatus, error) {
	s := SLAStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SLAStatusOnTrack, SLAStatusAtRisk, SLAStatusBreached:
		return s, nil
	}
	return "", fmt.Errorf("%w: sla status %q", ErrInvalidEnum, raw)
}

// Severity orders statuses: on_track < at_risk < breached.
func (s SLAStatus) Severity() int {
	switch s {
	case SLAStatusBreached:
		return 2
	case SLAStatusAtRisk:
		return 1
	default:
		return 0
	}
}

// Weight is the status contribution to the urgency score.
func (s SLAStatus) Weight() int {
	switch s {
	case SLAStatusBreached:
		return 5
	case SLAStatusAtRisk:
		return 3
	default:
		return 1
	}
}

// MostSevere returns the most severe of the given statuses, on_track when empty.
func MostSevere(statuses ...SLAStatus) SLAStatus {
	worst := SLAStatusOnTrack
	for _, s := range statuses {
		if s.Severity() > worst.Severity() {
			worst = s
		}
	}
	return worst
}
