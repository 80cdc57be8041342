// Package toolchain shells out to the three collaborator executables that do
// the heavy lifting for each queue item: the collector that gathers context
// for a definition, the builder that turns context into a batch request, and
// the submitter that uploads a request and polls the remote batch until
// results land on disk.
//
// The package owns flag layout, per-invocation timeouts, and translation of
// command failures into the sentinel taxonomy from hopper/internal/services.
// Command execution goes through the Executor interface so tests can stub the
// subprocess boundary.
package toolchain
