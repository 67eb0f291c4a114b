package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

// PolicyService manages the SLA policy catalog.
type PolicyService struct {
	policies repository.PolicyRepository
	logger   *zap.Logger
}

// PolicyInput describes a policy create or update payload.
type PolicyInput struct {
	Name              string
	RequestType       domain.RequestType
	Priority          domain.Priority
	ResponseMinutes   int
	ResolutionMinutes int
	EscalationMinutes *int
	// IsActive defaults to true on create and is left unchanged on update when nil.
	IsActive *bool
}

// SeedResult counts the outcome of SeedDefaults.
type SeedResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// NewPolicyService constructs the service.
func NewPolicyService(policies repository.PolicyRepository, logger *zap.Logger) *PolicyService {
	return &PolicyService{policies: policies, logger: logger}
}

// FindBestMatch returns the policy that applies to (requestType, priority), or nil.
func (s *PolicyService) FindBestMatch(ctx context.Context, requestType domain.RequestType, priority *domain.Priority) (*domain.SLAPolicy, error) {
	policy, err := s.policies.FindBestMatch(ctx, requestType, priority)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return policy, nil
}

// Get fetches a policy by id.
func (s *PolicyService) Get(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewValidationError("invalid policy id", map[string]any{"id": id})
	}
	policy, err := s.policies.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}
	return policy, nil
}

// List returns every policy, or only those of requestType when set.
func (s *PolicyService) List(ctx context.Context, requestType *domain.RequestType) ([]domain.SLAPolicy, error) {
	var (
		policies []domain.SLAPolicy
		err      error
	)
	if requestType != nil {
		policies, err = s.policies.FindByRequestType(ctx, *requestType)
	} else {
		policies, err = s.policies.List(ctx)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return policies, nil
}

// Create validates and stores a new policy.
func (s *PolicyService) Create(ctx context.Context, input PolicyInput) (*domain.SLAPolicy, error) {
	policy := &domain.SLAPolicy{IsActive: true}
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
	}
	if err := applyInput(policy, input); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, policy); err != nil {
		return nil, err
	}
	if err := s.policies.Save(ctx, policy); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("sla policy created",
		zap.String("policy_id", policy.ID),
		zap.String("request_type", string(policy.RequestType)),
		zap.String("priority", string(policy.Priority)))
	return policy, nil
}

// Update replaces the editable fields of an existing policy.
func (s *PolicyService) Update(ctx context.Context, id string, input PolicyInput) (*domain.SLAPolicy, error) {
	policy, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
	}
	if err := applyInput(policy, input); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, policy); err != nil {
		return nil, err
	}
	if err := s.policies.Save(ctx, policy); err != nil {
		return nil, s.mapLookupError(err, id)
	}
	return policy, nil
}

// Activate marks a policy active; it conflicts with another active policy for the same pair.
func (s *PolicyService) Activate(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate marks a policy inactive without deleting it.
func (s *PolicyService) Deactivate(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	return s.setActive(ctx, id, false)
}

// Delete removes a policy permanently.
func (s *PolicyService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.policies.Delete(ctx, id); err != nil {
		return s.mapLookupError(err, id)
	}
	s.logger.Info("sla policy deleted", zap.String("policy_id", id))
	return nil
}

// SeedDefaults creates a policy from the request type default budget for every
// (type, priority) pair that has none. Re-running it creates nothing new.
func (s *PolicyService) SeedDefaults(ctx context.Context) (SeedResult, error) {
	var result SeedResult
	for _, rt := range domain.RequestTypes {
		for _, p := range domain.Priorities {
			exists, err := s.policies.ExistsByTypeAndPriority(ctx, rt, p, repository.ExistsOptions{})
			if err != nil {
				return result, apperrors.MapError(err)
			}
			name := defaultPolicyName(rt, p)
			if !exists {
				exists, err = s.policies.ExistsByName(ctx, name, repository.ExistsOptions{})
				if err != nil {
					return result, apperrors.MapError(err)
				}
			}
			if exists {
				result.Skipped++
				continue
			}
			policy := &domain.SLAPolicy{
				Name:        name,
				RequestType: rt,
				Priority:    p,
				Budget:      rt.DefaultBudget(),
				IsActive:    true,
			}
			if err := s.policies.Save(ctx, policy); err != nil {
				return result, apperrors.MapError(err)
			}
			result.Created++
		}
	}
	s.logger.Info("sla policies seeded", zap.Int("created", result.Created), zap.Int("skipped", result.Skipped))
	return result, nil
}

func defaultPolicyName(rt domain.RequestType, p domain.Priority) string {
	return fmt.Sprintf("default-%s-%s", rt, p)
}

func (s *PolicyService) setActive(ctx context.Context, id string, active bool) (*domain.SLAPolicy, error) {
	policy, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy.IsActive == active {
		return policy, nil
	}
	policy.IsActive = active
	if active {
		if err := s.checkActivePair(ctx, policy); err != nil {
			return nil, err
		}
	}
	if err := s.policies.Save(ctx, policy); err != nil {
		return nil, s.mapLookupError(err, id)
	}
	return policy, nil
}

func applyInput(policy *domain.SLAPolicy, input PolicyInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if !input.RequestType.Valid() {
		return apperrors.NewValidationError("invalid request type", map[string]any{"request_type": input.RequestType})
	}
	if !input.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}
	budget, err := domain.NewTimeBudget(input.ResponseMinutes, input.ResolutionMinutes, input.EscalationMinutes)
	if err != nil {
		details := map[string]any{}
		var budgetErr *domain.BudgetError
		if errors.As(err, &budgetErr) {
			details["rule"] = budgetErr.Rule
		}
		return apperrors.WrapValidationError("invalid time budget", details, err)
	}
	policy.Name = name
	policy.RequestType = input.RequestType
	policy.Priority = input.Priority
	policy.Budget = budget
	return nil
}

func (s *PolicyService) checkConflicts(ctx context.Context, policy *domain.SLAPolicy) error {
	taken, err := s.policies.ExistsByName(ctx, policy.Name, repository.ExistsOptions{ExcludeID: policy.ID})
	if err != nil {
		return apperrors.MapError(err)
	}
	if taken {
		return apperrors.NewConflict("policy name already exists", map[string]any{"name": policy.Name})
	}
	if policy.IsActive {
		return s.checkActivePair(ctx, policy)
	}
	return nil
}

func (s *PolicyService) checkActivePair(ctx context.Context, policy *domain.SLAPolicy) error {
	taken, err := s.policies.ExistsByTypeAndPriority(ctx, policy.RequestType, policy.Priority, repository.ExistsOptions{ActiveOnly: true, ExcludeID: policy.ID})
	if err != nil {
		return apperrors.MapError(err)
	}
	if taken {
		return apperrors.NewConflict("an active policy already exists for this request type and priority", map[string]any{
			"request_type": policy.RequestType,
			"priority":     policy.Priority,
		})
	}
	return nil
}

func (s *PolicyService) mapLookupError(err error, id string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound("sla policy", map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}
