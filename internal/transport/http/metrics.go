package httptransport

import "expvar"

var (
	metricCommandsTotal  = expvar.NewInt("control_commands_total")
	metricCommandsErrors = expvar.NewInt("control_commands_errors_total")

	metricSSEConnectionsTotal  = expvar.NewInt("control_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("control_sse_connections_active")
)
