package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civic-kit/report-service/internal/api/dto"
	"github.com/civic-kit/report-service/internal/auth"
	"github.com/civic-kit/report-service/internal/service"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

// StaffReportsHandler handles staff listing and workflow endpoints.
type StaffReportsHandler struct {
	reports *service.ReportService
}

// NewStaffReportsHandler constructs handler.
func NewStaffReportsHandler(reportService *service.ReportService) *StaffReportsHandler {
	return &StaffReportsHandler{reports: reportService}
}

// List GET /staff/reports.
func (h *StaffReportsHandler) List(c *fiber.Ctx) error {
	views, err := h.reports.ListForStaff(c.UserContext(), auth.ActorFromContext(c), parseListFilter(c))
	if err != nil {
		return err
	}
	items, err := viewResponses(views)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateStatus PATCH /staff/reports/:tracking/status.
func (h *StaffReportsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.reports.UpdateStatus(c.UserContext(), auth.ActorFromContext(c), c.Params("tracking"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	resp, err := viewResponse(view)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Assign POST /staff/reports/:tracking/assign.
func (h *StaffReportsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.AssignmentInput{
		AssigneeID:   req.AssigneeID,
		AssigneeName: req.AssigneeName,
		TeamName:     req.TeamName,
	}
	if req.Liaison != nil {
		input.Liaison = &service.LiaisonInput{
			OfficerName:  req.Liaison.OfficerName,
			StationName:  req.Liaison.StationName,
			StationPhone: req.Liaison.StationPhone,
		}
	}
	view, err := h.reports.Assign(c.UserContext(), auth.ActorFromContext(c), c.Params("tracking"), input)
	if err != nil {
		return err
	}
	resp, err := viewResponse(view)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}
