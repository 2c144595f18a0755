package httptransport

import "expvar"

var (
	metricCommandRequests = expvar.NewMap("chip_http_command_requests_total")
	metricCommandFailures = expvar.NewMap("chip_http_command_failures_total")

	metricSSEConnectionsTotal  = expvar.NewInt("chip_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("chip_sse_connections_active")
)
