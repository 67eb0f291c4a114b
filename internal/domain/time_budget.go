package domain

import (
	"fmt"
	"math"
)

// Budget rules reported by BudgetError.
const (
	RuleResponsePositive       = "response_positive"
	RuleResolutionPositive     = "resolution_positive"
	RuleResolutionGteResponse  = "resolution_gte_response"
	RuleEscalationPositive     = "escalation_positive"
	RuleEscalationLtResolution = "escalation_lt_resolution"
)

// BudgetError names the budget invariant that was violated.
type BudgetError struct {
	Rule    string
	Message string
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("invalid time budget (%s): %s", e.Rule, e.Message)
}

// Is lets errors.Is(err, ErrInvalidBudget) match.
func (e *BudgetError) Is(target error) bool {
	return target == ErrInvalidBudget
}

// TimeBudget holds the response, resolution and optional escalation allowances in minutes.
type TimeBudget struct {
	responseMinutes   int
	resolutionMinutes int
	escalationMinutes int
	hasEscalation     bool
}

// NewTimeBudget validates and builds a TimeBudget.
func NewTimeBudget(response, resolution int, escalation *int) (TimeBudget, error) {
	if response <= 0 {
		return TimeBudget{}, &BudgetError{Rule: RuleResponsePositive, Message: fmt.Sprintf("response minutes must be positive, got %d", response)}
	}
	if resolution <= 0 {
		return TimeBudget{}, &BudgetError{Rule: RuleResolutionPositive, Message: fmt.Sprintf("resolution minutes must be positive, got %d", resolution)}
	}
	if resolution < response {
		return TimeBudget{}, &BudgetError{Rule: RuleResolutionGteResponse, Message: fmt.Sprintf("resolution minutes (%d) must not be less than response minutes (%d)", resolution, response)}
	}
	b := TimeBudget{responseMinutes: response, resolutionMinutes: resolution}
	if escalation != nil {
		if *escalation <= 0 {
			return TimeBudget{}, &BudgetError{Rule: RuleEscalationPositive, Message: fmt.Sprintf("escalation minutes must be positive, got %d", *escalation)}
		}
		if *escalation >= resolution {
			return TimeBudget{}, &BudgetError{Rule: RuleEscalationLtResolution, Message: fmt.Sprintf("escalation minutes (%d) must be less than resolution minutes (%d)", *escalation, resolution)}
		}
		b.escalationMinutes = *escalation
		b.hasEscalation = true
	}
	return b, nil
}

// ResponseMinutes returns the response allowance.
func (b TimeBudget) ResponseMinutes() int { return b.responseMinutes }

// ResolutionMinutes returns the resolution allowance.
func (b TimeBudget) ResolutionMinutes() int { return b.resolutionMinutes }

// EscalationMinutes returns the escalation allowance, nil when absent.
func (b TimeBudget) EscalationMinutes() *int {
	if !b.hasEscalation {
		return nil
	}
	v := b.escalationMinutes
	return &v
}

// IsZero reports whether b was never initialised.
func (b TimeBudget) IsZero() bool {
	return b.responseMinutes == 0 && b.resolutionMinutes == 0
}

// Equal compares budgets by value.
func (b TimeBudget) Equal(other TimeBudget) bool {
	return b == other
}

// AdjustForPriority scales every present allowance by the priority multiplier.
func (b TimeBudget) AdjustForPriority(p Priority) (TimeBudget, error) {
	m := p.Multiplier()
	var escalation *int
	if b.hasEscalation {
		v := scaleMinutes(b.escalationMinutes, m)
		escalation = &v
	}
	return NewTimeBudget(scaleMinutes(b.responseMinutes, m), scaleMinutes(b.resolutionMinutes, m), escalation)
}

func scaleMinutes(minutes int, multiplier float64) int {
	return int(math.Round(float64(minutes) * multiplier))
}

// String renders the budget for logs.
func (b TimeBudget) String() string {
	if b.hasEscalation {
		return fmt.Sprintf("response=%s resolution=%s escalation=%s",
			FormatMinutes(b.responseMinutes), FormatMinutes(b.resolutionMinutes), FormatMinutes(b.escalationMinutes))
	}
	return fmt.Sprintf("response=%s resolution=%s", FormatMinutes(b.responseMinutes), FormatMinutes(b.resolutionMinutes))
}

// FormatMinutes renders a minute count as minutes, hours or days.
func FormatMinutes(n int) string {
	switch {
	case n < 60:
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	case n < 1440:
		return fmt.Sprintf("%.1f hours", float64(n)/60)
	default:
		return fmt.Sprintf("%.1f days", float64(n)/1440)
	}
}
