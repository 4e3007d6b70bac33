package hostclient

import "expvar"

var (
	metricClientsConstructed = expvar.NewInt("host_client_constructed_total")
	metricDials              = expvar.NewInt("host_client_dial_total")
	metricDialErrors         = expvar.NewInt("host_client_dial_errors_total")
	metricFramesDropped      = expvar.NewInt("host_client_frames_dropped_total")
	metricSendBufferFull     = expvar.NewInt("host_client_send_buffer_full_total")
)
