// Package rabbitmq delivers audit events to a RabbitMQ queue.
//
// [Sink] implements [authcore.AuditSink]: each event is published as one
// persistent JSON message on a durable queue, so the trail survives broker
// restarts. Publish failures never surface to the security operation that
// produced the event; they increment a drop counter instead.
//
// # What this package must NOT do
//
//   - Block an auth flow on broker latency; publishes are bounded by a
//     fixed timeout.
//   - Consume or acknowledge messages; this side only produces.
package rabbitmq
