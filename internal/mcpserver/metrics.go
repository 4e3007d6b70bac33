package mcpserver

import "expvar"

var (
	metricToolCalls  = expvar.NewInt("mcp_tool_calls_total")
	metricToolErrors = expvar.NewInt("mcp_tool_errors_total")
)
