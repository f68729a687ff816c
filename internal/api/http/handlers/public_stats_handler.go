package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civic-kit/report-service/internal/api/dto"
	"github.com/civic-kit/report-service/internal/service"
)

// PublicStatsHandler serves anonymous dashboard statistics.
type PublicStatsHandler struct {
	stats *service.StatsService
}

// NewPublicStatsHandler constructs handler.
func NewPublicStatsHandler(statsService *service.StatsService) *PublicStatsHandler {
	return &PublicStatsHandler{stats: statsService}
}

// Summary GET /public/tenants/:tenant/summary.
func (h *PublicStatsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.stats.TenantSummary(c.UserContext(), c.Params("tenant"))
	if err != nil {
		return err
	}
	resp := dto.SummaryResponse{
		TenantID:       summary.TenantID,
		TotalTickets:   summary.TotalTickets,
		Resolved:       summary.Resolved,
		ResolutionRate: summary.ResolutionRate,
		ByStatus:       make(map[string]int, len(summary.ByStatus)),
		ByCategory:     make(map[string]int, len(summary.ByCategory)),
		BySeverity:     make(map[string]int, len(summary.BySeverity)),
	}
	for status, n := range summary.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	for category, n := range summary.ByCategory {
		resp.ByCategory[string(category)] = n
	}
	for severity, n := range summary.BySeverity {
		resp.BySeverity[string(severity)] = n
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Heatmap GET /public/tenants/:tenant/heatmap.
func (h *PublicStatsHandler) Heatmap(c *fiber.Ctx) error {
	cells, err := h.stats.Heatmap(c.UserContext(), c.Params("tenant"))
	if err != nil {
		return err
	}
	resp := make([]dto.HeatCellResponse, 0, len(cells))
	for _, cell := range cells {
		resp = append(resp, dto.HeatCellResponse{Geohash: cell.Geohash, Lat: cell.Lat, Lng: cell.Lng, Count: cell.Count})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Comparison GET /public/comparison.
func (h *PublicStatsHandler) Comparison(c *fiber.Ctx) error {
	rows, err := h.stats.TenantComparison(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.TenantTotalsResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, dto.TenantTotalsResponse{
			TenantID:       row.TenantID,
			TotalTickets:   row.TotalTickets,
			Resolved:       row.Resolved,
			ResolutionRate: row.ResolutionRate,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// SensitiveTotal GET /public/sensitive-total.
func (h *PublicStatsHandler) SensitiveTotal(c *fiber.Ctx) error {
	total, err := h.stats.SystemSensitiveTotal(c.UserContext())
	if err != nil {
		return err
	}
	resp := dto.SensitiveTotalResponse{Suppressed: total.Suppressed}
	if !total.Suppressed {
		count := total.Count
		resp.Count = &count
	}
	return c.JSON(fiber.Map{"data": resp})
}
