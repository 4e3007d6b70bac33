package store

import "expvar"

var (
	metricReportsArchived = expvar.NewInt("archive_game_reports_total")
	metricArchiveErrors   = expvar.NewInt("archive_errors_total")
)
