package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/service"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

// PoliciesHandler exposes the admin SLA policy catalog.
type PoliciesHandler struct {
	policies *service.PolicyService
}

// NewPoliciesHandler constructs handler.
func NewPoliciesHandler(policies *service.PolicyService) *PoliciesHandler {
	return &PoliciesHandler{policies: policies}
}

// List handles GET /admin/sla/policies.
func (h *PoliciesHandler) List(c *fiber.Ctx) error {
	var filter *domain.RequestType
	if raw := c.Query("request_type"); raw != "" {
		rt, err := domain.ParseRequestType(raw)
		if err != nil {
			return apperrors.WrapValidationError("invalid request_type", map[string]any{"request_type": raw}, err)
		}
		filter = &rt
	}
	policies, err := h.policies.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	resp := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		resp = append(resp, dto.NewPolicyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Create handles POST /admin/sla/policies.
func (h *PoliciesHandler) Create(c *fiber.Ctx) error {
	input, err := parsePolicyRequest(c)
	if err != nil {
		return err
	}
	policy, err := h.policies.Create(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// Get handles GET /admin/sla/policies/:id.
func (h *PoliciesHandler) Get(c *fiber.Ctx) error {
	policy, err := h.policies.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// Update handles PUT /admin/sla/policies/:id.
func (h *PoliciesHandler) Update(c *fiber.Ctx) error {
	input, err := parsePolicyRequest(c)
	if err != nil {
		return err
	}
	policy, err := h.policies.Update(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// Delete handles DELETE /admin/sla/policies/:id.
func (h *PoliciesHandler) Delete(c *fiber.Ctx) error {
	if err := h.policies.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Activate handles POST /admin/sla/policies/:id/activate.
func (h *PoliciesHandler) Activate(c *fiber.Ctx) error {
	policy, err := h.policies.Activate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// Deactivate handles POST /admin/sla/policies/:id/deactivate.
func (h *PoliciesHandler) Deactivate(c *fiber.Ctx) error {
	policy, err := h.policies.Deactivate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// Seed handles POST /admin/sla/policies/seed.
func (h *PoliciesHandler) Seed(c *fiber.Ctx) error {
	result, err := h.policies.SeedDefaults(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

func parsePolicyRequest(c *fiber.Ctx) (service.PolicyInput, error) {
	var req dto.PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return service.PolicyInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	rt, err := domain.ParseRequestType(req.RequestType)
	if err != nil {
		return service.PolicyInput{}, apperrors.WrapValidationError("invalid request_type", map[string]any{"request_type": req.RequestType}, err)
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return service.PolicyInput{}, apperrors.WrapValidationError("invalid priority", map[string]any{"priority": req.Priority}, err)
	}
	return service.PolicyInput{
		Name:              req.Name,
		RequestType:       rt,
		Priority:          priority,
		ResponseMinutes:   req.ResponseMinutes,
		ResolutionMinutes: req.ResolutionMinutes,
		EscalationMinutes: req.EscalationMinutes,
		IsActive:          req.IsActive,
	}, nil
}
