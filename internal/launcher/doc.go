// Package launcher spawns the privileged imaging helper through a
// polkit-style escalation broker and exposes the helper's stdout protocol as
// a typed event stream. It owns the session lock that prevents two imaging
// jobs from running at once.
package launcher
