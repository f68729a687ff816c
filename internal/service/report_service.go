package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/events"
	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/observability"
	"github.com/civic-kit/report-service/internal/repository"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

const maxTrackingAttempts = 5

// StatsInvalidator drops cached public statistics for a tenant.
type StatsInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// ReportService coordinates report workflows. Every read goes through the access
// policy and the view projector; callers never receive a domain.Report.
type ReportService struct {
	reports    repository.ReportRepository
	history    repository.HistoryRepository
	classifier firewall.Classifier
	projector  *firewall.Projector
	cache      StatsInvalidator
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	sanitizer  *bluemonday.Policy
	now        func() time.Time
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	ReportRepo  repository.ReportRepository
	HistoryRepo repository.HistoryRepository
	Classifier  firewall.Classifier
	Projector   *firewall.Projector
	Cache       StatsInvalidator
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// SubmitInput describes a citizen submission.
type SubmitInput struct {
	Category    string
	Description string
	Address     string
	Ward        *string
	Location    *domain.GeoPoint
	Media       []domain.MediaRef
	Severity    domain.Severity
}

// ListFilter describes listing filters shared by owners and staff.
type ListFilter struct {
	Statuses    []domain.ReportStatus
	Categories  []domain.Category
	Ward        *string
	AssigneeID  *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// LiaisonInput routes a sensitive report to a police liaison.
type LiaisonInput struct {
	OfficerName  string
	StationName  string
	StationPhone string
}

// AssignmentInput is either a routine assignment or a liaison assignment.
type AssignmentInput struct {
	AssigneeID   *string
	AssigneeName string
	TeamName     string
	Liaison      *LiaisonInput
}

func (in AssignmentInput) hasRoutine() bool {
	return in.AssigneeID != nil || strings.TrimSpace(in.AssigneeName) != "" || strings.TrimSpace(in.TeamName) != ""
}

var (
	statusMutators          = []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleFieldWorker}
	sensitiveStatusMutators = []domain.Role{domain.RoleAdmin, domain.RoleSAPSLiaison}
	routineAssigners        = []domain.Role{domain.RoleAdmin, domain.RoleManager}
	liaisonAssigners        = []domain.Role{domain.RoleAdmin, domain.RoleSAPSLiaison}
)

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	projector := deps.Projector
	if projector == nil {
		projector = firewall.NewProjector(nil)
	}
	return &ReportService{
		reports:    deps.ReportRepo,
		history:    deps.HistoryRepo,
		classifier: deps.Classifier,
		projector:  projector,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		sanitizer:  bluemonday.StrictPolicy(),
		now:        time.Now,
	}
}

// Submit files a new report for a citizen and returns the submitter's view of it.
func (s *ReportService) Submit(ctx context.Context, actor firewall.Actor, input SubmitInput) (firewall.View, error) {
	if actor.Role != domain.RoleCitizen || actor.ID == "" || actor.TenantID == "" {
		return nil, apperrors.NewForbidden("only citizens may submit reports")
	}

	category := domain.Category(input.Category)
	if !category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	description := s.sanitize(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	severity := input.Severity
	if severity == "" {
		severity = domain.SeverityMedium
	}
	if !severity.Valid() {
		return nil, apperrors.NewValidationError("unknown severity", map[string]any{"severity": severity})
	}
	if input.Location != nil && !input.Location.Valid() {
		return nil, apperrors.NewValidationError("location out of range", nil)
	}

	report := &domain.Report{
		TenantID:    actor.TenantID,
		Ward:        trimmedOrNil(input.Ward),
		OwnerID:     actor.ID,
		Category:    category,
		Description: description,
		Address:     s.sanitize(input.Address),
		Location:    input.Location,
		Media:       input.Media,
		Severity:    severity,
		Status:      domain.StatusOpen,
		IsSensitive: s.classifier.Classify(category),
	}
	entry := &domain.ReportHistory{
		ChangedByID: stringPtr(actor.ID),
		ChangedBy:   actor.Role,
		ChangeType:  domain.ChangeTypeCreated,
		NewValue:    map[string]any{"status": domain.StatusOpen},
	}

	var err error
	for attempt := 0; attempt < maxTrackingAttempts; attempt++ {
		report.TrackingNumber = domain.NewTrackingNumber(s.now())
		err = s.reports.Create(ctx, actor, report, entry)
		if !errors.Is(err, repository.ErrDuplicateTracking) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, report.TenantID)

	payload := events.ReportCreatedPayload{Severity: report.Severity}
	if !report.IsSensitive {
		payload.Category = &report.Category
		payload.Ward = report.Ward
	}
	s.publishEvent(ctx, report, actor, events.EventReportCreated, payload)

	return s.project(actor, report)
}

// Get returns the caller's view of one report. Denied and missing reports are
// indistinguishable.
func (s *ReportService) Get(ctx context.Context, actor firewall.Actor, trackingNumber string) (firewall.View, error) {
	report, decision, err := s.load(ctx, actor, trackingNumber)
	if err != nil {
		return nil, err
	}
	view, ok := s.projector.Project(report, decision)
	if !ok {
		return nil, concealed()
	}
	return view, nil
}

// ListMine lists the caller's own reports: full views for ordinary reports and
// limited views for sensitive ones.
func (s *ReportService) ListMine(ctx context.Context, actor firewall.Actor, filter ListFilter) ([]firewall.View, error) {
	if actor.ID == "" {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	reports, err := s.reports.ListByOwner(ctx, actor, toRepoFilter(filter, firewall.Scope{}))
	if err != nil {
		return nil, err
	}
	return s.projectAll(actor, reports), nil
}

// ListForStaff lists tenant reports visible to a staff member. Rows the policy
// denies are omitted without trace.
func (s *ReportService) ListForStaff(ctx context.Context, actor firewall.Actor, filter ListFilter) ([]firewall.View, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	scope := firewall.ScopeOf(actor)
	if scope.Empty() {
		return []firewall.View{}, nil
	}
	reports, err := s.reports.ListForTenant(ctx, actor, toRepoFilter(filter, scope))
	if err != nil {
		return nil, err
	}
	return s.projectAll(actor, reports), nil
}

// UpdateStatus moves a report through its lifecycle.
func (s *ReportService) UpdateStatus(ctx context.Context, actor firewall.Actor, trackingNumber string, status domain.ReportStatus, comment string) (firewall.View, error) {
	report, err := s.loadForChange(ctx, actor, trackingNumber)
	if err != nil {
		return nil, err
	}
	allowed := statusMutators
	if report.IsSensitive {
		allowed = sensitiveStatusMutators
	}
	if !roleIn(actor.Role, allowed) || actor.TenantID != report.TenantID {
		return nil, apperrors.NewForbidden("role may not change report status")
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
	}
	if !report.Status.CanTransition(status) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{"from": report.Status, "to": status})
	}

	oldStatus := report.Status
	report.Status = status
	switch status {
	case domain.StatusResolved:
		now := s.now()
		report.ResolvedAt = &now
	case domain.StatusClosed:
	default:
		report.ResolvedAt = nil
	}

	comment = s.sanitize(comment)
	newValue := map[string]any{"status": status}
	if comment != "" {
		newValue["comment"] = comment
	}
	entry := &domain.ReportHistory{
		ChangedByID: stringPtr(actor.ID),
		ChangedBy:   actor.Role,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": oldStatus},
		NewValue:    newValue,
	}
	if err := s.reports.Update(ctx, actor, report, entry); err != nil {
		return nil, s.concealMissing(err)
	}

	s.invalidateStats(ctx, report.TenantID)
	s.publishEvent(ctx, report, actor, events.EventReportStatusChanged, events.ReportStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: status,
		Comment:   comment,
	})
	return s.project(actor, report)
}

// Assign sets the routine assignment of an ordinary report or the liaison routing
// of a sensitive one. The two field sets never mix.
func (s *ReportService) Assign(ctx context.Context, actor firewall.Actor, trackingNumber string, input AssignmentInput) (firewall.View, error) {
	report, err := s.loadForChange(ctx, actor, trackingNumber)
	if err != nil {
		return nil, err
	}
	if actor.TenantID != report.TenantID {
		return nil, apperrors.NewForbidden("role may not assign this report")
	}

	var (
		entry   *domain.ReportHistory
		payload events.ReportAssignedPayload
	)
	if report.IsSensitive {
		if !roleIn(actor.Role, liaisonAssigners) {
			return nil, apperrors.NewForbidden("role may not assign this report")
		}
		if input.hasRoutine() || input.Liaison == nil {
			return nil, apperrors.NewValidationError("this report accepts a liaison assignment only", nil)
		}
		liaison := &domain.LiaisonAssignment{
			OfficerName:  s.sanitize(input.Liaison.OfficerName),
			StationName:  s.sanitize(input.Liaison.StationName),
			StationPhone: s.sanitize(input.Liaison.StationPhone),
		}
		if liaison.OfficerName == "" || liaison.StationName == "" {
			return nil, apperrors.NewValidationError("officer and station are required", nil)
		}
		entry = &domain.ReportHistory{
			ChangeType: domain.ChangeTypeLiaison,
			OldValue:   liaisonValue(report.Liaison),
			NewValue:   liaisonValue(liaison),
		}
		report.Liaison = liaison
		payload = events.ReportAssignedPayload{Liaison: true, Station: liaison.StationName}
	} else {
		if !roleIn(actor.Role, routineAssigners) {
			return nil, apperrors.NewForbidden("role may not assign this report")
		}
		if input.Liaison != nil || !input.hasRoutine() {
			return nil, apperrors.NewValidationError("this report accepts a routine assignment only", nil)
		}
		assignment := &domain.Assignment{
			AssigneeID:   input.AssigneeID,
			AssigneeName: s.sanitize(input.AssigneeName),
			TeamName:     s.sanitize(input.TeamName),
		}
		entry = &domain.ReportHistory{
			ChangeType: domain.ChangeTypeAssignment,
			OldValue:   assignmentValue(report.Assignment),
			NewValue:   assignmentValue(assignment),
		}
		report.Assignment = assignment
		payload = events.ReportAssignedPayload{AssigneeID: assignment.AssigneeID, TeamName: assignment.TeamName}
	}
	entry.ChangedByID = stringPtr(actor.ID)
	entry.ChangedBy = actor.Role

	if err := s.reports.Update(ctx, actor, report, entry); err != nil {
		return nil, s.concealMissing(err)
	}
	s.publishEvent(ctx, report, actor, events.EventReportAssigned, payload)
	return s.project(actor, report)
}

// History returns the audit trail the caller may see. Limited viewers receive
// status changes only, without actor or comment.
func (s *ReportService) History(ctx context.Context, actor firewall.Actor, trackingNumber string) ([]domain.ReportHistory, error) {
	report, decision, err := s.load(ctx, actor, trackingNumber)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.ListByReport(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	if decision == firewall.Full {
		return entries, nil
	}

	limited := make([]domain.ReportHistory, 0, len(entries))
	for _, entry := range entries {
		if entry.ChangeType != domain.ChangeTypeCreated && entry.ChangeType != domain.ChangeTypeStatus {
			continue
		}
		limited = append(limited, domain.ReportHistory{
			ID:         entry.ID,
			ReportID:   entry.ReportID,
			ChangeType: entry.ChangeType,
			OldValue:   statusOnly(entry.OldValue),
			NewValue:   statusOnly(entry.NewValue),
			CreatedAt:  entry.CreatedAt,
		})
	}
	return limited, nil
}

// load fetches a report and evaluates the policy. Any denial becomes the same
// concealed not-found error a missing report produces.
func (s *ReportService) load(ctx context.Context, actor firewall.Actor, trackingNumber string) (*domain.Report, firewall.Decision, error) {
	if !domain.ValidTrackingNumber(trackingNumber) {
		return nil, firewall.Deny, concealed()
	}
	report, err := s.reports.GetByTracking(ctx, actor, trackingNumber)
	if err != nil {
		return nil, firewall.Deny, s.concealMissing(err)
	}
	decision := s.decide(actor, report)
	if decision == firewall.Deny {
		return nil, firewall.Deny, concealed()
	}
	return report, decision, nil
}

// loadForChange requires a FULL decision. A limited viewer learns nothing more
// from a write attempt than from a missing report.
func (s *ReportService) loadForChange(ctx context.Context, actor firewall.Actor, trackingNumber string) (*domain.Report, error) {
	report, decision, err := s.load(ctx, actor, trackingNumber)
	if err != nil {
		return nil, err
	}
	if decision != firewall.Full {
		return nil, concealed()
	}
	return report, nil
}

func (s *ReportService) decide(actor firewall.Actor, report *domain.Report) firewall.Decision {
	decision := firewall.DecideReport(actor, report)
	s.metrics.RecordDecision(decision.String())
	return decision
}

func (s *ReportService) project(actor firewall.Actor, report *domain.Report) (firewall.View, error) {
	view, ok := s.projector.Project(report, s.decide(actor, report))
	if !ok {
		return nil, concealed()
	}
	return view, nil
}

func (s *ReportService) projectAll(actor firewall.Actor, reports []domain.Report) []firewall.View {
	views := make([]firewall.View, 0, len(reports))
	for i := range reports {
		view, ok := s.projector.Project(&reports[i], s.decide(actor, &reports[i]))
		if !ok {
			continue
		}
		views = append(views, view)
	}
	return views
}

func (s *ReportService) concealMissing(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return concealed()
	}
	return err
}

func (s *ReportService) invalidateStats(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, tenantID); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func (s *ReportService) publishEvent(ctx context.Context, report *domain.Report, actor firewall.Actor, eventType events.EventType, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		ReportID:       report.ID,
		TrackingNumber: report.TrackingNumber,
		TenantID:       report.TenantID,
		Sensitive:      report.IsSensitive,
		Actor:          events.Actor{ID: stringPtr(actor.ID), Role: actor.Role},
		Timestamp:      s.now(),
		Payload:        payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(eventType)),
			zap.String("tracking_number", report.TrackingNumber),
			zap.Error(err))
	}
}

// sanitize strips markup and stores plain text.
func (s *ReportService) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(strings.TrimSpace(text))))
}

func toRepoFilter(filter ListFilter, scope firewall.Scope) repository.ReportFilter {
	return repository.ReportFilter{
		Scope:       scope,
		Statuses:    filter.Statuses,
		Categories:  filter.Categories,
		Ward:        filter.Ward,
		AssigneeID:  filter.AssigneeID,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
}

func concealed() error {
	return apperrors.NewConcealedNotFound("report")
}

func roleIn(role domain.Role, roles []domain.Role) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func statusOnly(values map[string]any) map[string]any {
	out := map[string]any{}
	if status, ok := values["status"]; ok {
		out["status"] = status
	}
	return out
}

func assignmentValue(a *domain.Assignment) map[string]any {
	if a == nil {
		return map[string]any{}
	}
	value := map[string]any{"assignee_name": a.AssigneeName, "team_name": a.TeamName}
	if a.AssigneeID != nil {
		value["assignee_id"] = *a.AssigneeID
	}
	return value
}

func liaisonValue(l *domain.LiaisonAssignment) map[string]any {
	if l == nil {
		return map[string]any{}
	}
	return map[string]any{
		"officer_name":  l.OfficerName,
		"station_name":  l.StationName,
		"station_phone": l.StationPhone,
	}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
