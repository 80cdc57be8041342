// Package state persists the orchestrator's durable record: the rolling
// submission window consulted by the rate limiter, the set of completed item
// names, and the item currently mid-pipeline.
//
// The Store writes the full record atomically after every mutation, so a
// crash immediately after any mutator leaves the file consistent with "the
// mutation happened". A missing or unparseable file degrades to a fresh
// record rather than an error; all other I/O failures are fatal because
// rate-limit accounting cannot proceed without durability.
package state
