// Package pipeline drives a queue item through the fixed generation
// sequence: collect context, build the draft request, gate and submit the
// draft batch, relocate the draft, then repeat collection, building, gating,
// and submission for the final batch before relocating the finished
// artifacts.
//
// Every phase writes its output to a deterministic per-stem path, so a
// restarted run inspects the filesystem and resumes at the most advanced
// phase whose inputs survive. Rate-gate denials end the run with a deferral
// result instead of an error, leaving all artifacts in place for the next
// offer. Any other failure moves the definition to the failed directory with
// a diagnostic note and is reported to the caller without aborting the
// surrounding run loop; only state-store write failures and context
// cancellation propagate as errors.
package pipeline
