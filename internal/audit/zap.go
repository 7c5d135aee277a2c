package audit

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapSink logs each event as one "audit event" line on the "audit" logger.
// Failed outcomes are logged at warn.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	fields := []zap.Field{
		zap.String("kind", event.Kind),
		zap.Bool("success", event.Success),
		zap.Time("at", event.At),
	}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if event.ClientIP != "" {
		fields = append(fields, zap.String("client_ip", event.ClientIP))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if len(event.Attrs) > 0 {
		fields = append(fields, zap.Object("attrs", attrs(event.Attrs)))
	}

	level := zapcore.InfoLevel
	if !event.Success {
		level = zapcore.WarnLevel
	}
	s.logger.Log(level, "audit event", fields...)
}

type attrs map[string]string

func (a attrs) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, v := range a {
		enc.AddString(k, v)
	}
	return nil
}
