/*
Package log provides structured logging for Shiftgate using zerolog.

The package wraps zerolog with a single global logger, configurable level
and output format (JSON for production, console for development), and
child-logger helpers that attach rollout context to every line.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	ctl := log.WithComponent("controller")
	ctl.Info().Str("attempt_id", attempt.ID).Msg("stage advanced")

Attempt-scoped loggers:

	alog := log.WithAttemptID("prod-a1b2c3-7f3e")
	alog.Warn().Float64("error_rate", 7.2).Msg("threshold breached")

# Context fields

  - component: which engine component emitted the line (controller,
    monitor, rollback, api, record)
  - attempt_id: the rollout attempt the line belongs to
  - service / revision: the workload being rolled out

Every rollout-related line should carry attempt_id so a single grep over
the JSON stream reconstructs an attempt end to end.
*/
package log
