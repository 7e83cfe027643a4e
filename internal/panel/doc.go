// Package panel renders the human-facing attendance pages.
//
// HTML templates and the stylesheet are embedded into the binary with
// go:embed, so the service has no runtime dependency on external files.
// The attendance board auto-refreshes and shows each seat's display label
// ("At desk", "In lab", "Absent") and last-seen time, or "----" for a seat
// that has never been seen.
package panel
