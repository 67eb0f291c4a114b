package worker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/service"
)

// StartNotificationWorker subscribes the SLA notification handlers and reports
// which delivery channels are enabled. With no channel configured, breach,
// at-risk and daily report events are only logged.
func StartNotificationWorker(notifications *service.NotificationService, cfg config.NotificationConfig, logger *zap.Logger) {
	if notifications == nil {
		return
	}
	notifications.RegisterHandlers()

	channels := make([]string, 0, 2)
	if strings.TrimSpace(cfg.EmailFrom) != "" {
		channels = append(channels, "email")
	}
	if strings.TrimSpace(cfg.WebhookURL) != "" {
		channels = append(channels, "webhook")
	}
	if len(channels) == 0 {
		logger.Warn("no sla notification channel configured; notifications are log only")
		return
	}
	logger.Info("sla notification handlers registered", zap.Strings("channels", channels))
}
