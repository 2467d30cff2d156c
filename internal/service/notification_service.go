package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/config"
	"github.com/spec-kit/ticket-resolution/internal/events"
)

// NotificationService handles emitting notifications for workflow events.
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
	n.dispatcher.Subscribe(events.EventResearchCompleted, n.handleResearchCompleted)
	n.dispatcher.Subscribe(events.EventPlanAwaitingApproval, n.handlePlanAwaitingApproval)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTicketAbandoned, n.handleTicketAbandoned)
}

func (n *NotificationService) handleResearchCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ResearchCompletedPayload)
	if ok && payload.Degraded {
		n.logger.Warn("research completed with degraded coverage",
			zap.String("ticket_id", event.TicketID),
			zap.Any("hit_counts", payload.HitCounts))
		return nil
	}
	n.logger.Info("research completed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

// handlePlanAwaitingApproval pings the reviewer queue. The workflow halts at
// this point until a human submits a disposition, so this is the one event
// that must reach a person.
func (n *NotificationService) handlePlanAwaitingApproval(ctx context.Context, event events.Event) error {
	n.logger.Info("plan awaiting approval", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket closed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAbandoned(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket abandoned", zap.String("ticket_id", event.TicketID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
