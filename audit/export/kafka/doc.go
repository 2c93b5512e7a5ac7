// Package kafka streams audit events to a Kafka topic.
//
// [Sink] implements [authcore.AuditSink]: each event becomes one JSON
// message, keyed by user ID so a single account's trail stays ordered
// within a partition. Broker failures never surface to the security
// operation that produced the event; failed publishes increment a drop
// counter instead.
//
// # What this package must NOT do
//
//   - Block an auth flow on broker latency; publishes are bounded by a
//     fixed timeout.
//   - Retry or buffer beyond what the underlying writer does.
package kafka
