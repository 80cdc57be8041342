// Package queue models the directory-based work queue.
//
// The queue is the filesystem itself: a definition file dropped into the
// queue directory is a pending item, and eligibility is decided at scan time
// by filtering against the state store's completed set. The Scanner produces
// a deterministic oldest-first ordering so repeated scans after partial runs
// re-offer deferred items without duplicating finished ones.
package queue
