// Package logging wraps log/slog with the attribute helpers and handlers
// shared by the CLI and the privileged helper.
//
// The helper binary reserves stdout for the progress protocol, so every
// logger built here writes to stderr (or a file) by default. Console output
// keeps records on one line for interactive use; the JSON format exists for
// log collectors.
package logging
