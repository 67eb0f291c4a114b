package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/service"
	"github.com/spec-kit/sla-service/internal/sla"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

// SLAHandler exposes deadline, status and urgency calculations.
type SLAHandler struct {
	sla *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(svc *service.SLAService) *SLAHandler {
	return &SLAHandler{sla: svc}
}

// Deadlines handles POST /sla/deadlines.
func (h *SLAHandler) Deadlines(c *fiber.Ctx) error {
	var req dto.DeadlineRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.CalculateInput{RequestType: req.RequestType, Priority: req.Priority}
	if req.Start != nil {
		input.Start = req.Start.UTC()
	}
	result, err := h.sla.CalculateDeadlines(c.UserContext(), input)
	if err != nil {
		return err
	}
	d := result.Deadlines
	return c.JSON(fiber.Map{"data": dto.DeadlineResponse{
		RequestType:        result.RequestType,
		Priority:           result.Priority,
		PolicyID:           result.PolicyID,
		CreatedAt:          d.CreatedAt,
		ResponseDeadline:   d.ResponseDeadline,
		ResolutionDeadline: d.ResolutionDeadline,
		EscalationDeadline: d.EscalationDeadline,
	}})
}

// Status handles POST /sla/status.
func (h *SLAHandler) Status(c *fiber.Ctx) error {
	snapshot, err := h.parseSnapshot(c)
	if err != nil {
		return err
	}
	result, err := h.sla.CheckStatus(c.UserContext(), snapshot)
	if err != nil {
		return err
	}
	eval := result.Evaluation
	return c.JSON(fiber.Map{"data": dto.StatusResponse{
		RequestID:          snapshot.RequestID,
		Status:             eval.Status,
		ResponseStatus:     eval.ResponseStatus,
		ResolutionStatus:   eval.ResolutionStatus,
		AtRisk:             dto.AtRiskResponse{Response: result.AtRisk.Response, Resolution: result.AtRisk.Resolution},
		UrgencyScore:       result.UrgencyScore,
		TimeRemainingMs:    result.TimeRemaining.Milliseconds(),
		PercentElapsed:     result.PercentElapsed,
		EscalationRequired: result.EscalationRequired,
		PolicyID:           result.PolicyID,
		ResponseDeadline:   result.Deadlines.ResponseDeadline,
		ResolutionDeadline: result.Deadlines.ResolutionDeadline,
		EscalationDeadline: result.Deadlines.EscalationDeadline,
		Breaches:           breachResponses(eval.Breaches),
		EvaluatedAt:        result.EvaluatedAt,
	}})
}

// Breaches handles POST /sla/breaches.
func (h *SLAHandler) Breaches(c *fiber.Ctx) error {
	snapshot, err := h.parseSnapshot(c)
	if err != nil {
		return err
	}
	breaches, err := h.sla.CheckBreaches(c.UserContext(), snapshot)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": breachResponses(breaches)})
}

// Urgency handles POST /sla/urgency.
func (h *SLAHandler) Urgency(c *fiber.Ctx) error {
	var req dto.UrgencyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	snapshots := make([]domain.RequestSLASnapshot, 0, len(req.Items))
	for i, item := range req.Items {
		if item.RequestID == "" {
			return apperrors.NewValidationError("request_id required", map[string]any{"index": i, "field": "request_id"})
		}
		if item.CreatedAt.IsZero() {
			return apperrors.NewValidationError("created_at required", map[string]any{"index": i, "field": "created_at"})
		}
		snapshots = append(snapshots, h.toSnapshot(item))
	}
	ids, err := h.sla.SortByUrgency(c.UserContext(), snapshots)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"request_ids": ids}})
}

func (h *SLAHandler) parseSnapshot(c *fiber.Ctx) (domain.RequestSLASnapshot, error) {
	var req dto.SnapshotRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.RequestSLASnapshot{}, apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CreatedAt.IsZero() {
		return domain.RequestSLASnapshot{}, apperrors.NewValidationError("created_at required", map[string]any{"field": "created_at"})
	}
	return h.toSnapshot(req), nil
}

func (h *SLAHandler) toSnapshot(req dto.SnapshotRequest) domain.RequestSLASnapshot {
	rt, priority := h.sla.Normalize(req.RequestType, req.Priority)
	return domain.RequestSLASnapshot{
		RequestID:          req.RequestID,
		RequestNumber:      req.RequestNumber,
		RequestType:        rt,
		Priority:           priority,
		CreatedAt:          req.CreatedAt.UTC(),
		RespondedAt:        req.RespondedAt,
		ResolvedAt:         req.ResolvedAt,
		SLADeadline:        req.SLADeadline,
		ResponseDeadline:   req.ResponseDeadline,
		EscalationDeadline: req.EscalationDeadline,
	}
}

func breachResponses(breaches []sla.Breach) []dto.BreachResponse {
	resp := make([]dto.BreachResponse, 0, len(breaches))
	for _, b := range breaches {
		resp = append(resp, dto.BreachResponse{
			Dimension: b.Dimension,
			Deadline:  b.Deadline,
			OverdueMs: b.Overdue.Milliseconds(),
		})
	}
	return resp
}
