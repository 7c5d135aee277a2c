package goAccount

import (
	"context"

	"go.uber.org/zap"
)

// logNotifier writes tokens to the log instead of sending email.
type logNotifier struct {
	logger *zap.Logger
}

func newLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger.Named("notifier")}
}

func (n *logNotifier) SendEmailVerification(_ context.Context, email, token string) error {
	n.logger.Debug("email verification token issued",
		zap.String("email", maskEmail(email)),
		zap.String("token", token),
	)
	return nil
}

func (n *logNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.logger.Debug("password reset token issued",
		zap.String("email", maskEmail(email)),
		zap.String("token", token),
	)
	return nil
}
