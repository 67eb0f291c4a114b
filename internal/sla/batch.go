package sla

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// SnapshotEvaluation pairs a snapshot with its evaluation, or the error that prevented it.
type SnapshotEvaluation struct {
	Snapshot   domain.RequestSLASnapshot
	Deadlines  domain.SLADeadlines
	Evaluation Evaluation
	Err        error
}

// EvaluateSnapshot derives status for one persisted request governed by policy
// (nil for the request type default).
func EvaluateSnapshot(policy *domain.SLAPolicy, s domain.RequestSLASnapshot, now time.Time) SnapshotEvaluation {
	d, err := DeadlinesForSnapshot(policy, s)
	if err != nil {
		return SnapshotEvaluation{Snapshot: s, Err: err}
	}
	return SnapshotEvaluation{
		Snapshot:   s,
		Deadlines:  d,
		Evaluation: Evaluate(d, s.Responded(), s.Resolved(), now),
	}
}

// NewUrgencyItem projects a snapshot into a ranking input.
func NewUrgencyItem(policy *domain.SLAPolicy, s domain.RequestSLASnapshot) (UrgencyItem, error) {
	d, err := DeadlinesForSnapshot(policy, s)
	if err != nil {
		return UrgencyItem{}, err
	}
	return UrgencyItem{
		RequestID: s.RequestID,
		Deadlines: d,
		Priority:  s.Priority,
		Responded: s.Responded(),
		Resolved:  s.Resolved(),
	}, nil
}
