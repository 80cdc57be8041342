// Package daemon hosts the background processing loop behind an advisory
// file lock so only one hopper instance touches the queue at a time. The
// same lock guards one-shot runs; Probe lets the status command report a
// running instance without taking the lock for longer than an instant.
package daemon
