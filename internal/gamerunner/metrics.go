package gamerunner

import "expvar"

var (
	metricLaunches       = expvar.NewInt("game_runner_launch_total")
	metricLaunchErrors   = expvar.NewInt("game_runner_launch_errors_total")
	metricCommandsDrop   = expvar.NewInt("game_runner_commands_dropped_total")
	metricMalformedLines = expvar.NewInt("game_runner_malformed_lines_total")
)
