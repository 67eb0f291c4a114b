package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/sla"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

// SLAService answers deadline, status and urgency questions for callers that
// own the requests.
type SLAService struct {
	policies PolicyMatcher
	engine   *sla.Engine
	logger   *zap.Logger
}

// CalculateInput describes a new request whose deadlines must be stamped.
type CalculateInput struct {
	RequestType string
	Priority    string
	// Start defaults to the engine clock when zero.
	Start time.Time
}

// DeadlineResult carries the stamped deadlines and the policy that produced them.
type DeadlineResult struct {
	RequestType domain.RequestType
	Priority    domain.Priority
	// PolicyID is nil when the request type default budget was used.
	PolicyID  *string
	Deadlines domain.SLADeadlines
}

// StatusResult is the live status of one request.
type StatusResult struct {
	Evaluation    sla.Evaluation
	Deadlines     domain.SLADeadlines
	AtRisk        sla.AtRisk
	UrgencyScore  int
	TimeRemaining time.Duration
	// PercentElapsed is the consumed share of the resolution window.
	PercentElapsed     int
	EscalationRequired bool
	// PolicyID is the policy currently matching the request, nil for the default budget.
	PolicyID    *string
	EvaluatedAt time.Time
}

// NewSLAService constructs the service.
func NewSLAService(policies PolicyMatcher, engine *sla.Engine, logger *zap.Logger) *SLAService {
	return &SLAService{policies: policies, engine: engine, logger: logger}
}

// Normalize resolves raw request type and priority, substituting consultation
// and normal for unknown values.
func (s *SLAService) Normalize(rawType, rawPriority string) (domain.RequestType, domain.Priority) {
	rt, ok := domain.RequestTypeOrDefault(rawType)
	if !ok {
		s.logger.Warn("unknown request type; defaulting to consultation", zap.String("request_type", rawType))
	}
	p, ok := domain.PriorityOrDefault(rawPriority)
	if !ok {
		s.logger.Warn("unknown priority; defaulting to normal", zap.String("priority", rawPriority))
	}
	return rt, p
}

// CalculateDeadlines stamps deadlines for a new request from the best matching policy.
func (s *SLAService) CalculateDeadlines(ctx context.Context, input CalculateInput) (*DeadlineResult, error) {
	rt, p := s.Normalize(input.RequestType, input.Priority)
	start := input.Start
	if start.IsZero() {
		start = s.engine.Now()
	}

	policy, err := s.policies.FindBestMatch(ctx, rt, &p)
	if err != nil {
		return nil, err
	}
	deadlines, err := sla.CalculateDeadlines(policy, rt, p, start)
	if err != nil {
		return nil, apperrors.WrapValidationError("unable to calculate deadlines", map[string]any{
			"request_type": rt,
			"priority":     p,
		}, err)
	}

	result := &DeadlineResult{RequestType: rt, Priority: p, Deadlines: deadlines}
	if policy != nil {
		id := policy.ID
		result.PolicyID = &id
	}
	return result, nil
}

// CheckStatus evaluates a persisted request at the engine clock. Deadlines not
// stamped on the snapshot come from the policy that currently matches it.
func (s *SLAService) CheckStatus(ctx context.Context, snapshot domain.RequestSLASnapshot) (*StatusResult, error) {
	policy, d, err := s.deadlines(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	now := s.engine.Now()
	responded, resolved := snapshot.Responded(), snapshot.Resolved()
	result := &StatusResult{
		Evaluation:         sla.Evaluate(d, responded, resolved, now),
		Deadlines:          d,
		AtRisk:             sla.IsAtRisk(d, responded, resolved, now, 0),
		UrgencyScore:       sla.UrgencyScore(d, snapshot.Priority, responded, resolved, now),
		TimeRemaining:      d.TimeRemaining(now, domain.DimensionResolution),
		PercentElapsed:     d.ElapsedPercent(now, domain.DimensionResolution),
		EscalationRequired: !resolved && d.IsEscalationRequired(now),
		EvaluatedAt:        now,
	}
	if policy != nil {
		id := policy.ID
		result.PolicyID = &id
	}
	return result, nil
}

// CheckBreaches lists the open dimensions of a request that are past deadline.
func (s *SLAService) CheckBreaches(ctx context.Context, snapshot domain.RequestSLASnapshot) ([]sla.Breach, error) {
	_, d, err := s.deadlines(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return sla.CheckBreaches(d, snapshot.Responded(), snapshot.Resolved(), s.engine.Now()), nil
}

// SortByUrgency returns request ids, most urgent first. Requests whose
// deadlines cannot be derived are logged and ranked last in input order.
func (s *SLAService) SortByUrgency(ctx context.Context, snapshots []domain.RequestSLASnapshot) ([]string, error) {
	policies := newPolicyCache(s.policies)
	items := make([]sla.UrgencyItem, 0, len(snapshots))
	var unranked []string
	for _, snapshot := range snapshots {
		policy, err := policies.lookup(ctx, snapshot.RequestType, snapshot.Priority)
		if err != nil {
			return nil, err
		}
		item, err := sla.NewUrgencyItem(policy, snapshot)
		if err != nil {
			s.logger.Warn("unable to rank request; placing it last",
				zap.String("request_id", snapshot.RequestID),
				zap.Error(err))
			unranked = append(unranked, snapshot.RequestID)
			continue
		}
		items = append(items, item)
	}
	return append(s.engine.SortByUrgency(items), unranked...), nil
}

func (s *SLAService) deadlines(ctx context.Context, snapshot domain.RequestSLASnapshot) (*domain.SLAPolicy, domain.SLADeadlines, error) {
	priority := snapshot.Priority
	policy, err := s.policies.FindBestMatch(ctx, snapshot.RequestType, &priority)
	if err != nil {
		return nil, domain.SLADeadlines{}, err
	}
	d, err := sla.DeadlinesForSnapshot(policy, snapshot)
	if err != nil {
		return nil, domain.SLADeadlines{}, apperrors.WrapValidationError("unable to derive deadlines", map[string]any{
			"request_id": snapshot.RequestID,
		}, err)
	}
	return policy, d, nil
}
