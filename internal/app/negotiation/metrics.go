package negotiation

import "expvar"

var (
	metricStagesStarted      = expvar.NewInt("chip_stages_started_total")
	metricCommandsTotal      = expvar.NewInt("chip_commands_total")
	metricCommandErrors      = expvar.NewInt("chip_command_errors_total")
	metricCommandReplays     = expvar.NewInt("chip_command_replays_total")
	metricCommitConflicts    = expvar.NewInt("chip_commit_conflicts_total")
	metricTransactionsClosed = expvar.NewMap("chip_transactions_resolved_total")
)
