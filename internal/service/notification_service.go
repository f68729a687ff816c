package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/civic-kit/report-service/internal/config"
	"github.com/civic-kit/report-service/internal/events"
)

// NotificationService handles emitting notifications for domain events. Sensitive
// events go only to the liaison alert channel and never to general webhooks.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventReportCreated, n.handleReportCreated)
	n.dispatcher.Subscribe(events.EventReportStatusChanged, n.handleReportStatusChanged)
	n.dispatcher.Subscribe(events.EventReportAssigned, n.handleReportAssigned)
}

func (n *NotificationService) handleReportCreated(ctx context.Context, event events.Event) error {
	if event.Sensitive {
		n.logger.Info("ReportCreated", eventFields(event)...)
		n.sendLiaisonAlertStub(ctx, event)
		return nil
	}
	n.logger.Info("ReportCreated", append(eventFields(event), zap.Any("payload", event.Payload))...)
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleReportStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("ReportStatusChanged", eventFields(event)...)
	if event.Sensitive {
		n.sendLiaisonAlertStub(ctx, event)
		return nil
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleReportAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("ReportAssigned", eventFields(event)...)
	if event.Sensitive {
		n.sendLiaisonAlertStub(ctx, event)
		return nil
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("tracking_number", event.TrackingNumber),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("tracking_number", event.TrackingNumber),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendLiaisonAlertStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.LiaisonAlertsURL) == "" {
		return
	}
	n.logger.Debug("sendLiaisonAlertStub",
		zap.String("url", n.cfg.LiaisonAlertsURL),
		zap.String("tracking_number", event.TrackingNumber),
		zap.String("event_type", string(event.Type)))
}

// eventFields are safe to log for any event; payloads of sensitive events are not.
func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("tracking_number", event.TrackingNumber),
		zap.String("tenant_id", event.TenantID),
		zap.Bool("sensitive", event.Sensitive),
	}
}
