package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
)

// NotificationPort delivers SLA notifications. Delivery is best effort; callers
// record returned errors and carry on.
type NotificationPort interface {
	NotifySLABreach(ctx context.Context, payload events.SLABreachPayload) error
	NotifySLAAtRisk(ctx context.Context, payload events.SLAAtRiskPayload) error
	NotifySLADailyReport(ctx context.Context, payload events.SLADailyReportPayload) error
}

// NotificationService publishes SLA notifications as events and handles them
// with the email and webhook delivery stubs.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, metrics *observability.Metrics) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
	n.dispatcher.Subscribe(events.EventSLAAtRisk, n.handleSLAAtRisk)
	n.dispatcher.Subscribe(events.EventSLADailyReport, n.handleSLADailyReport)
}

func (n *NotificationService) NotifySLABreach(ctx context.Context, payload events.SLABreachPayload) error {
	return n.publish(ctx, events.EventSLABreached, payload.RequestID, payload)
}

func (n *NotificationService) NotifySLAAtRisk(ctx context.Context, payload events.SLAAtRiskPayload) error {
	return n.publish(ctx, events.EventSLAAtRisk, payload.RequestID, payload)
}

func (n *NotificationService) NotifySLADailyReport(ctx context.Context, payload events.SLADailyReportPayload) error {
	return n.publish(ctx, events.EventSLADailyReport, payload.AdminUserID, payload)
}

func (n *NotificationService) publish(ctx context.Context, eventType events.EventType, subjectID string, payload any) error {
	if n.dispatcher == nil {
		return nil
	}
	err := n.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Timestamp: n.now(),
		Payload:   payload,
	})
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	n.metrics.IncNotification(string(eventType), outcome)
	return err
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	n.logger.Warn("SLABreached", zap.String("request_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSLAAtRisk(ctx context.Context, event events.Event) error {
	n.logger.Info("SLAAtRisk", zap.String("request_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSLADailyReport(ctx context.Context, event events.Event) error {
	n.logger.Info("SLADailyReport", zap.String("admin_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
