package domain

import (
	"fmt"
	"strings"
)

// RequestType enumerates the request kinds tracked against an SLA.
type RequestType string

const (
	RequestTypeConsultation RequestType = "consultation"
	RequestTypeLegalOpinion RequestType = "legal_opinion"
	RequestTypeService      RequestType = "service"
	RequestTypeLitigation   RequestType = "litigation"
	RequestTypeCall         RequestType = "call"
)

// RequestTypes lists every request kind in a stable order.
var RequestTypes = []RequestType{
	RequestTypeConsultation,
	RequestTypeLegalOpinion,
	RequestTypeService,
	RequestTypeLitigation,
	RequestTypeCall,
}

// ParseRequestType validates a raw request type string.
func ParseRequestType(raw string) (RequestType, error) {
	rt := RequestType(strings.ToLower(strings.TrimSpace(raw)))
	if !rt.Valid() {
		return "", fmt.Errorf("%w: request type %q", ErrInvalidEnum, raw)
	}
	return rt, nil
}

// RequestTypeOrDefault parses raw and falls back to consultation. The bool
// reports whether the input was valid so callers can log the substitution.
func RequestTypeOrDefault(raw string) (RequestType, bool) {
	rt, err := ParseRequestType(raw)
	if err != nil {
		return RequestTypeConsultation, false
	}
	return rt, true
}

// Valid reports whether rt is a known request type.
func (rt RequestType) Valid() bool {
	switch rt {
	case RequestTypeConsultation, RequestTypeLegalOpinion, RequestTypeService, RequestTypeLitigation, RequestTypeCall:
		return true
	}
	return false
}

// DefaultBudget returns the hardcoded budget used when no policy matches.
func (rt RequestType) DefaultBudget() TimeBudget {
	switch rt {
	case RequestTypeLegalOpinion:
		return mustBudget(240, 7200, 4320)
	case RequestTypeService:
		return mustBudget(60, 1440, 720)
	case RequestTypeLitigation:
		return mustBudget(480, 14400, 7200)
	case RequestTypeCall:
		return mustBudget(15, 60, 30)
	default:
		return mustBudget(120, 2880, 1440)
	}
}

func mustBudget(response, resolution, escalation int) TimeBudget {
	b, err := NewTimeBudget(response, resolution, &escalation)
	if err != nil {
		panic(err)
	}
	return b
}

// Priority enumerates request urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// ParsePriority validates a raw priority string.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: priority %q", ErrInvalidEnum, raw)
	}
	return p, nil
}

// PriorityOrDefault parses raw and falls back to normal.
func PriorityOrDefault(raw string) (Priority, bool) {
	p, err := ParsePriority(raw)
	if err != nil {
		return PriorityNormal, false
	}
	return p, true
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Multiplier scales time budgets for the priority.
func (p Priority) Multiplier() float64 {
	switch p {
	case PriorityLow:
		return 1.5
	case PriorityHigh:
		return 0.75
	case PriorityUrgent:
		return 0.5
	default:
		return 1.0
	}
}

// Ordinal orders priorities from low (0) to urgent (3).
func (p Priority) Ordinal() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

// Weight is the priority contribution to the urgency score.
func (p Priority) Weight() int {
	return p.Ordinal() + 1
}
