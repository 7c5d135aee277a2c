package goAccount

import (
	internalaudit "github.com/MrEthical07/goAccount/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant outcome (login, lockout, 2FA change, ...).
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events in a channel; useful in tests.
type ChannelSink = internalaudit.ChannelSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewZapSink logs every event through logger.
func NewZapSink(logger *zap.Logger) AuditSink {
	return internalaudit.NewZapSink(logger)
}
