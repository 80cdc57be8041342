// Package preflight provides readiness checks for the filesystem paths,
// credentials, and collaborator binaries the run loop depends on.
//
// These checks run in two contexts:
//   - run and daemon startup call RunAll before entering the loop; any
//     failure there is a configuration error and aborts with a non-zero
//     exit instead of wasting a rate-limited submission on a doomed run.
//   - The "hopper status" command renders the same results read-only so an
//     operator can see what would block the next run.
package preflight
