// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, NATS, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with id, timestamp, type, user, session, IP, metadata.
//
// NATSSink publishes on "<subject>.<event_type>" so consumers can subscribe to
// "shopauth.audit.>" or to a single event type.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import shopauth or any sibling internal package.
package audit
