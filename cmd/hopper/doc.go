// Package main hosts the Hopper CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the three processing entrypoints
// (bare run-once, `run`, and `daemon`), read-only status reporting, queue
// maintenance, notification testing, and configuration scaffolding. It
// centralizes configuration resolution and logging setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
