// Package audit carries account-security events from the Engine to a Sink
// without holding up the request that produced them.
//
// [Dispatcher] owns a bounded queue and one worker goroutine; when the queue
// is full it either blocks the caller or drops and counts the event,
// depending on [Overflow]. Which events exist and what goes into them is
// decided by the Engine, not here. Sinks provided: [ChannelSink] for tests
// and embedding, [ZapSink] for structured logs, [NoOpSink].
package audit
