package dto

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// PolicyRequest is the create/update payload for SLA policies.
type PolicyRequest struct {
	Name              string `json:"name"`
	RequestType       string `json:"request_type"`
	Priority          string `json:"priority"`
	ResponseMinutes   int    `json:"response_minutes"`
	ResolutionMinutes int    `json:"resolution_minutes"`
	EscalationMinutes *int   `json:"escalation_minutes"`
	IsActive          *bool  `json:"is_active"`
}

// PolicyResponse represents a stored policy.
type PolicyResponse struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	RequestType       domain.RequestType `json:"request_type"`
	Priority          domain.Priority    `json:"priority"`
	ResponseMinutes   int                `json:"response_minutes"`
	ResolutionMinutes int                `json:"resolution_minutes"`
	EscalationMinutes *int               `json:"escalation_minutes"`
	Budget            string             `json:"budget"`
	IsActive          bool               `json:"is_active"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewPolicyResponse maps a domain policy.
func NewPolicyResponse(p *domain.SLAPolicy) PolicyResponse {
	return PolicyResponse{
		ID:                p.ID,
		Name:              p.Name,
		RequestType:       p.RequestType,
		Priority:          p.Priority,
		ResponseMinutes:   p.Budget.ResponseMinutes(),
		ResolutionMinutes: p.Budget.ResolutionMinutes(),
		EscalationMinutes: p.Budget.EscalationMinutes(),
		Budget:            p.Budget.String(),
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
