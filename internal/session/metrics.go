package session

import "expvar"

var (
	metricTicks              = expvar.NewInt("session_ticks_total")
	metricHostClientsBuilt   = expvar.NewInt("session_host_clients_built_total")
	metricRequestsIssued     = expvar.NewInt("session_requests_issued_total")
	metricRequestsRejected   = expvar.NewInt("session_requests_rejected_total")
	metricRequestsFailed     = expvar.NewInt("session_requests_failed_total")
	metricGameStarts         = expvar.NewInt("session_game_starts_total")
	metricGameAborts         = expvar.NewInt("session_game_aborts_total")
	metricTokensDropped      = expvar.NewInt("session_tokens_dropped_total")
	metricProtocolMismatches = expvar.NewInt("session_protocol_mismatches_total")
	metricEventsDropped      = expvar.NewInt("session_events_dropped_total")
)
