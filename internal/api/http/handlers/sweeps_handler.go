package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/service"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

const reportDateLayout = "2006-01-02"

// SweepsHandler exposes manual sweeps and stored reports to administrators.
type SweepsHandler struct {
	sweeps *service.SweepService
	now    func() time.Time
}

// NewSweepsHandler constructs handler.
func NewSweepsHandler(sweeps *service.SweepService) *SweepsHandler {
	return &SweepsHandler{sweeps: sweeps, now: func() time.Time { return time.Now().UTC() }}
}

// Trigger handles POST /admin/sla/sweeps.
func (h *SweepsHandler) Trigger(c *fiber.Ctx) error {
	report, err := h.sweeps.ManualTrigger(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// Latest handles GET /admin/sla/sweeps/latest.
func (h *SweepsHandler) Latest(c *fiber.Ctx) error {
	report, err := h.sweeps.LatestReport(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// RunDaily handles POST /admin/sla/reports/daily.
func (h *SweepsHandler) RunDaily(c *fiber.Ctx) error {
	var req dto.DailyReportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if req.Date == "" {
		report, err := h.sweeps.RunDailyReportAt(c.UserContext(), h.now())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": report})
	}

	date, err := parseReportDate(req.Date)
	if err != nil {
		return err
	}
	report, err := h.sweeps.RunDailyReport(c.UserContext(), date)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// GetDaily handles GET /admin/sla/reports/daily/:date.
func (h *SweepsHandler) GetDaily(c *fiber.Ctx) error {
	date, err := parseReportDate(c.Params("date"))
	if err != nil {
		return err
	}
	report, err := h.sweeps.DailyReport(c.UserContext(), date)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func parseReportDate(raw string) (time.Time, error) {
	date, err := time.ParseInLocation(reportDateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date must be YYYY-MM-DD", map[string]any{"date": raw})
	}
	return date, nil
}
