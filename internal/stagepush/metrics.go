package stagepush

import "expvar"

var (
	metricPushQueuedTotal       = expvar.NewInt("stage_push_queued_total")
	metricPushDroppedTotal      = expvar.NewInt("stage_push_dropped_total")
	metricPushRetryTotal        = expvar.NewInt("stage_push_retry_total")
	metricPushRetryDroppedTotal = expvar.NewInt("stage_push_retry_dropped_total")
	metricPushSentTotal         = expvar.NewInt("stage_push_sent_total")
	metricPushFailedTotal       = expvar.NewInt("stage_push_failed_total")
	metricPushCircuitOpenTotal  = expvar.NewInt("stage_push_circuit_open_total")
	metricPushQueueLen          = expvar.NewInt("stage_push_queue_len")
)
