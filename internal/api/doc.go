// Package api provides the HTTP server for the occupancy service.
//
// This package provides:
//   - GET /snapshot: structured occupancy table plus query time
//   - GET /api/attendance: the same data in the board's legacy shape
//   - GET / and GET /edit: the attendance board and address form
//   - POST /update_address: overwrite a seat's registered device address
//   - GET /api/v1/health, /api/v1/metrics: monitoring
//   - GET /api/v1/ws: WebSocket feed of seat changes
//
// Every snapshot read goes straight to the store. A store failure is
// reported as 503 rather than an empty or stale table.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
