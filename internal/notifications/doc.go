// Package notifications delivers run events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Enumerated event types cover the run milestones (queue passes, item
// completion, failures, rate-limit deferrals) so the workflow manager can
// emit consistent messages without duplicating HTTP glue, and per-event
// toggles let operators silence the chatty ones.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
