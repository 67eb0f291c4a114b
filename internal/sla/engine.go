// Package sla derives SLA status, breaches and urgency from request deadlines.
// Every function is pure given an explicit "now"; Engine only adds a clock.
package sla

import (
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// Breach describes a dimension whose deadline passed without completion.
type Breach struct {
	Dimension domain.Dimension
	Deadline  time.Time
	Overdue   time.Duration
}

// AtRisk flags which open dimensions crossed the risk threshold.
type AtRisk struct {
	Response   bool
	Resolution bool
}

// Evaluation is the full status derivation for one request.
type Evaluation struct {
	Status           domain.SLAStatus
	ResponseStatus   domain.SLAStatus
	ResolutionStatus domain.SLAStatus
	Breaches         []Breach
}

// UrgencyItem is the input for urgency ranking.
type UrgencyItem struct {
	RequestID string
	Deadlines domain.SLADeadlines
	Priority  domain.Priority
	Responded bool
	Resolved  bool
}

// Engine evaluates deadlines against a clock.
type Engine struct {
	now func() time.Time
}

// NewEngine builds an engine; a nil clock means the wall clock in UTC.
func NewEngine(clock func() time.Time) *Engine {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{now: clock}
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	return e.now()
}

// ResponseStatus evaluates the response dimension at the current clock.
func (e *Engine) ResponseStatus(d domain.SLADeadlines, responded bool) domain.SLAStatus {
	return ResponseStatus(d, responded, e.now())
}

// ResolutionStatus evaluates the resolution dimension at the current clock.
func (e *Engine) ResolutionStatus(d domain.SLADeadlines, resolved bool) domain.SLAStatus {
	return ResolutionStatus(d, resolved, e.now())
}

// OverallStatus evaluates the request at the current clock.
func (e *Engine) OverallStatus(d domain.SLADeadlines, responded, resolved bool) domain.SLAStatus {
	return OverallStatus(d, responded, resolved, e.now())
}

// Evaluate runs every status derivation at the current clock.
func (e *Engine) Evaluate(d domain.SLADeadlines, responded, resolved bool) Evaluation {
	return Evaluate(d, responded, resolved, e.now())
}

// SortByUrgency ranks items at the current clock.
func (e *Engine) SortByUrgency(items []UrgencyItem) []string {
	return SortByUrgency(items, e.now())
}

// ResponseStatus: a recorded response is terminal and always on track.
func ResponseStatus(d domain.SLADeadlines, responded bool, now time.Time) domain.SLAStatus {
	if responded {
		return domain.SLAStatusOnTrack
	}
	return openStatus(d, domain.DimensionResponse, now)
}

// ResolutionStatus: a resolved request is on track regardless of when it was resolved.
func ResolutionStatus(d domain.SLADeadlines, resolved bool, now time.Time) domain.SLAStatus {
	if resolved {
		return domain.SLAStatusOnTrack
	}
	return openStatus(d, domain.DimensionResolution, now)
}

func openStatus(d domain.SLADeadlines, dim domain.Dimension, now time.Time) domain.SLAStatus {
	deadline, _ := d.Deadline(dim)
	if now.After(deadline) {
		return domain.SLAStatusBreached
	}
	if d.ElapsedPercent(now, dim) >= domain.AtRiskThreshold {
		return domain.SLAStatusAtRisk
	}
	return domain.SLAStatusOnTrack
}

// OverallStatus is the most severe of the response and resolution statuses.
func OverallStatus(d domain.SLADeadlines, responded, resolved bool, now time.Time) domain.SLAStatus {
	return domain.MostSevere(ResponseStatus(d, responded, now), ResolutionStatus(d, resolved, now))
}

// Evaluate bundles per-dimension, overall status and breaches.
func Evaluate(d domain.SLADeadlines, responded, resolved bool, now time.Time) Evaluation {
	response := ResponseStatus(d, responded, now)
	resolution := ResolutionStatus(d, resolved, now)
	return Evaluation{
		Status:           domain.MostSevere(response, resolution),
		ResponseStatus:   response,
		ResolutionStatus: resolution,
		Breaches:         CheckBreaches(d, responded, resolved, now),
	}
}

// CheckBreaches lists every open dimension that is past its deadline.
func CheckBreaches(d domain.SLADeadlines, responded, resolved bool, now time.Time) []Breach {
	var breaches []Breach
	if !responded && d.IsResponseBreached(now) {
		breaches = append(breaches, Breach{
			Dimension: domain.DimensionResponse,
			Deadline:  d.ResponseDeadline,
			Overdue:   now.Sub(d.ResponseDeadline),
		})
	}
	if !resolved && d.IsResolutionBreached(now) {
		breaches = append(breaches, Breach{
			Dimension: domain.DimensionResolution,
			Deadline:  d.ResolutionDeadline,
			Overdue:   now.Sub(d.ResolutionDeadline),
		})
	}
	return breaches
}

// IsAtRisk flags open dimensions whose elapsed share reached threshold (0 means the default).
func IsAtRisk(d domain.SLADeadlines, responded, resolved bool, now time.Time, threshold int) AtRisk {
	if threshold <= 0 {
		threshold = domain.AtRiskThreshold
	}
	return AtRisk{
		Response:   !responded && d.ElapsedPercent(now, domain.DimensionResponse) >= threshold,
		Resolution: !resolved && d.ElapsedPercent(now, domain.DimensionResolution) >= threshold,
	}
}

// UrgencyScore ranks requests; it has no meaning beyond relative ordering.
func UrgencyScore(d domain.SLADeadlines, priority domain.Priority, responded, resolved bool, now time.Time) int {
	if resolved {
		return 0
	}
	status := OverallStatus(d, responded, resolved, now)
	return priority.Weight()*10 + status.Weight()*20 + d.ElapsedPercent(now, domain.DimensionResolution)
}

// SortByUrgency returns request ids by descending urgency, keeping input order on ties.
func SortByUrgency(items []UrgencyItem, now time.Time) []string {
	type scored struct {
		id    string
		score int
	}
	ranked := make([]scored, len(items))
	for i, item := range items {
		ranked[i] = scored{id: item.RequestID, score: UrgencyScore(item.Deadlines, item.Priority, item.Responded, item.Resolved, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	return ids
}

// CalculateDeadlines stamps deadlines from a policy budget, or from the request
// type default when policy is nil. Either budget is scaled by the request's own
// priority, which may differ from the policy's priority tag.
func CalculateDeadlines(policy *domain.SLAPolicy, requestType domain.RequestType, priority domain.Priority, start time.Time) (domain.SLADeadlines, error) {
	budget := requestType.DefaultBudget()
	if policy != nil {
		budget = policy.Budget
	}
	adjusted, err := budget.AdjustForPriority(priority)
	if err != nil {
		return domain.SLADeadlines{}, fmt.Errorf("adjust budget for %s/%s: %w", requestType, priority, err)
	}
	return domain.CalculateDeadlines(adjusted, start), nil
}

// DeadlinesForSnapshot rebuilds deadlines for a persisted request. The budget
// of policy (the request type default when nil) applied at CreatedAt is the
// base; every deadline stamped on the snapshot replaces the derived one.
func DeadlinesForSnapshot(policy *domain.SLAPolicy, s domain.RequestSLASnapshot) (domain.SLADeadlines, error) {
	d, err := CalculateDeadlines(policy, s.RequestType, s.Priority, s.CreatedAt)
	if err != nil {
		return domain.SLADeadlines{}, err
	}
	if s.SLADeadline != nil {
		d.ResolutionDeadline = *s.SLADeadline
	}
	if s.ResponseDeadline != nil {
		d.ResponseDeadline = *s.ResponseDeadline
	}
	if s.EscalationDeadline != nil {
		esc := *s.EscalationDeadline
		d.EscalationDeadline = &esc
	}
	return d, nil
}
