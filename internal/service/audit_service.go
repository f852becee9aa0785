package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/token-authority/internal/events"
	"github.com/spec-kit/token-authority/internal/observability"
)

// AuditService records identity events in the log and the auth counters.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTokenIssued, a.handleTokenIssued)
	a.dispatcher.Subscribe(events.EventTokenRevoked, a.handleTokenRevoked)
	a.dispatcher.Subscribe(events.EventTokenRejected, a.handleTokenRejected)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
	a.dispatcher.Subscribe(events.EventPasswordChanged, a.handlePasswordChanged)
	a.dispatcher.Subscribe(events.EventUserCreated, a.handleUserCreated)
}

func (a *AuditService) handleTokenIssued(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TokenIssuedPayload)
	a.metrics.RecordAuthOutcome("issued")
	a.logger.Info("TokenIssued",
		zap.String("subject_id", event.SubjectID),
		zap.String("role", string(event.Role)),
		zap.String("reason", payload.Reason),
		zap.String("token_id", payload.TokenID),
		zap.Time("expires_at", payload.ExpiresAt))
	return nil
}

func (a *AuditService) handleTokenRevoked(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TokenRevokedPayload)
	a.metrics.RecordAuthOutcome("revoked")
	a.logger.Info("TokenRevoked",
		zap.String("subject_id", event.SubjectID),
		zap.String("token_id", payload.TokenID))
	return nil
}

func (a *AuditService) handleTokenRejected(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TokenRejectedPayload)
	a.metrics.RecordAuthOutcome("rejected:" + payload.Code)
	a.logger.Debug("TokenRejected",
		zap.String("code", payload.Code),
		zap.String("method", payload.Method),
		zap.String("path", payload.Path),
		zap.String("remote_ip", payload.RemoteIP))
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.LoginFailedPayload)
	a.metrics.RecordAuthOutcome("login_failed")
	a.logger.Warn("LoginFailed",
		zap.String("email", payload.Email),
		zap.String("remote_ip", payload.RemoteIP))
	return nil
}

func (a *AuditService) handlePasswordChanged(_ context.Context, event events.Event) error {
	a.metrics.RecordAuthOutcome("password_changed")
	a.logger.Info("PasswordChanged", zap.String("subject_id", event.SubjectID))
	return nil
}

func (a *AuditService) handleUserCreated(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.UserCreatedPayload)
	a.metrics.RecordAuthOutcome("user_created")
	a.logger.Info("UserCreated",
		zap.String("user_id", payload.UserID),
		zap.String("role", string(event.Role)),
		zap.String("created_by", payload.CreatedBy))
	return nil
}
