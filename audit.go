package shopauth

import (
	"io"

	internalaudit "github.com/MrEthical07/shopauth/internal/audit"
)

// AuditEvent is one security-relevant record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the Engine's async dispatcher.
type AuditSink = internalaudit.Sink

// AuditPublisher is satisfied by *nats.Conn.
type AuditPublisher = internalaudit.Publisher

type NoOpSink = internalaudit.NoOpSink

// NewChannelSink returns a sink whose events can be drained from Events().
func NewChannelSink(buffer int) *internalaudit.ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *internalaudit.JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewNATSSink publishes each event as JSON on subject + "." + event type.
func NewNATSSink(pub AuditPublisher, subject string) *internalaudit.NATSSink {
	return internalaudit.NewNATSSink(pub, subject)
}
