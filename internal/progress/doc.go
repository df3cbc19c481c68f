// Package progress implements the line-oriented text protocol the privileged
// helper writes on stdout and the CLI parses.
//
// The stream is one-directional and strictly ordered: READY, interleaved
// PROGRESS, DONE, VERIFY_START, interleaved VERIFY_PROGRESS, VERIFY_DONE,
// METRICS; any point may instead end with ERROR. Unrecognized lines are
// skipped by the parser so older CLIs keep working against newer helpers.
// Stream closure without VERIFY_DONE or ERROR is surfaced as
// ErrUnexpectedTermination, never as silent success.
package progress
