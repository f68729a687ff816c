package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civic-kit/report-service/internal/api/dto"
	"github.com/civic-kit/report-service/internal/auth"
	"github.com/civic-kit/report-service/internal/service"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

// AdminHandler exposes tenant administration endpoints.
type AdminHandler struct {
	auth *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService) *AdminHandler {
	return &AdminHandler{auth: authService}
}

// CreateStaff handles POST /admin/accounts.
func (h *AdminHandler) CreateStaff(c *fiber.Ctx) error {
	var req dto.CreateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	account, err := h.auth.CreateStaff(c.UserContext(), auth.ActorFromContext(c), service.StaffInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Wards:    req.Wards,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": accountResponse(account)})
}
