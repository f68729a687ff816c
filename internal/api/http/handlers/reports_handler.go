package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civic-kit/report-service/internal/api/dto"
	"github.com/civic-kit/report-service/internal/auth"
	"github.com/civic-kit/report-service/internal/service"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

// ReportsHandler manages citizen report endpoints and single-report reads.
type ReportsHandler struct {
	reports *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reportService}
}

// Submit POST /reports.
func (h *ReportsHandler) Submit(c *fiber.Ctx) error {
	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.reports.Submit(c.UserContext(), auth.ActorFromContext(c), service.SubmitInput{
		Category:    req.Category,
		Description: req.Description,
		Address:     req.Address,
		Ward:        req.Ward,
		Location:    req.Location,
		Media:       req.Media,
		Severity:    req.Severity,
	})
	if err != nil {
		return err
	}
	resp, err := viewResponse(view)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListMine GET /reports/mine.
func (h *ReportsHandler) ListMine(c *fiber.Ctx) error {
	views, err := h.reports.ListMine(c.UserContext(), auth.ActorFromContext(c), parseListFilter(c))
	if err != nil {
		return err
	}
	items, err := viewResponses(views)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /reports/:tracking.
func (h *ReportsHandler) Get(c *fiber.Ctx) error {
	view, err := h.reports.Get(c.UserContext(), auth.ActorFromContext(c), c.Params("tracking"))
	if err != nil {
		return err
	}
	resp, err := viewResponse(view)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}

// History GET /reports/:tracking/history.
func (h *ReportsHandler) History(c *fiber.Ctx) error {
	entries, err := h.reports.History(c.UserContext(), auth.ActorFromContext(c), c.Params("tracking"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}
