package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/civic-kit/report-service/internal/api/dto"
	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/service"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

const maxPageSize = 100

// viewResponse renders a projected view. The switch is exhaustive over the
// sealed view types.
func viewResponse(view firewall.View) (any, error) {
	switch v := view.(type) {
	case firewall.FullView:
		return fullResponse(v), nil
	case firewall.LimitedView:
		return limitedResponse(v), nil
	default:
		return nil, apperrors.NewInternalError(fmt.Errorf("unrenderable view %T", view))
	}
}

func viewResponses(views []firewall.View) ([]any, error) {
	items := make([]any, 0, len(views))
	for _, view := range views {
		item, err := viewResponse(view)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func fullResponse(v firewall.FullView) dto.FullReportResponse {
	resp := dto.FullReportResponse{
		View:           dto.ViewFull,
		TrackingNumber: v.TrackingNumber,
		TenantID:       v.TenantID,
		Ward:           v.Ward,
		Category:       v.Category,
		Description:    v.Description,
		Address:        v.Address,
		Location:       v.Location,
		Media:          v.Media,
		Severity:       v.Severity,
		Status:         v.Status,
		Sensitive:      v.Sensitive,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
		ResolvedAt:     v.ResolvedAt,
	}
	if resp.Media == nil {
		resp.Media = []domain.MediaRef{}
	}
	if a := v.Assignment; a != nil {
		resp.Assignment = &dto.AssignmentResponse{AssigneeID: a.AssigneeID, AssigneeName: a.AssigneeName, TeamName: a.TeamName}
	}
	if l := v.Liaison; l != nil {
		resp.Liaison = &dto.LiaisonResponse{OfficerName: l.OfficerName, StationName: l.StationName, StationPhone: l.StationPhone}
	}
	return resp
}

func limitedResponse(v firewall.LimitedView) dto.LimitedReportResponse {
	contacts := make([]dto.EmergencyContactResponse, 0, len(v.EmergencyContacts))
	for _, contact := range v.EmergencyContacts {
		contacts = append(contacts, dto.EmergencyContactResponse{Label: contact.Label, Number: contact.Number})
	}
	return dto.LimitedReportResponse{
		View:                dto.ViewLimited,
		TrackingNumber:      v.TrackingNumber,
		Status:              v.Status,
		AssignedOfficerName: v.AssignedOfficerName,
		StationName:         v.StationName,
		StationPhone:        v.StationPhone,
		EmergencyContacts:   contacts,
	}
}

func historyResponses(entries []domain.ReportHistory) []dto.HistoryResponse {
	resp := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.HistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByRole: entry.ChangedBy,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}

func parseListFilter(c *fiber.Ctx) service.ListFilter {
	filter := service.ListFilter{}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, domain.ReportStatus(strings.TrimSpace(part)))
		}
	}
	if categories := c.Query("category"); categories != "" {
		for _, part := range strings.Split(categories, ",") {
			filter.Categories = append(filter.Categories, domain.Category(strings.TrimSpace(part)))
		}
	}
	if ward := c.Query("ward"); ward != "" {
		filter.Ward = &ward
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
