// Package http exposes the parking service over JSON/HTTP.
//
// The router serves:
//   - POST /api/v1/parking/entry: body {"licensePlate","carType"} ("vehicleClass"
//     is accepted as an alias). Responds 201 with the opened session.
//   - POST /api/v1/parking/exit: body {"licensePlate"}. Responds 200 with the
//     closed session including "exitTime".
//   - GET /api/v1/parking/report?start_date&end_date[&totalCapacity]: responds
//     {"occupied","free","avgDurationMinutes"}. totalCapacity defaults to the
//     configured capacity.
//   - GET /api/v1/parking/sessions?start_date&end_date: sessions that entered
//     within the window, ordered by entry time.
//   - GET /healthz and GET /metrics.
//
// Timestamps are accepted as RFC 3339 or ISO-8601 local date-times (read as
// UTC) and returned as RFC 3339 in UTC. Errors use the errorResponse payload
// defined in responder.go.
package http
