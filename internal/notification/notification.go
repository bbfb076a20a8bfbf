package notification

import (
	"context"
	"log/slog"
)

// Notifier delivers verification codes to users. The core only guarantees
// the code is persisted and logged; delivery is best-effort.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// LoggerNotifier writes codes to the structured logger instead of sending
// mail. Used in dev mode and tests.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// SendVerificationCode logs the code.
func (n *LoggerNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("verification code issued", "email", email, "code", code)
	return nil
}
