/*
Package log provides structured logging for the engine using zerolog.

A single global zerolog.Logger is configured once via log.Init at process
start (cmd/orga's root command), then every subsystem derives a child
logger carrying a "component" field via log.WithComponent(name).
log.WithWorkerID(i) and log.WithHeight(h) derive child loggers of the
global logger that carry a worker_id or height field instead of a
component. The driver logs its begin-block line through log.WithHeight;
the scheduler logs only through its component logger.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true, // JSON in production, console in development
		Output:     os.Stdout,
	})

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Int("epoch", epoch).Msg("epoch sweep complete")

	log.WithHeight(height).Warn().
		Str("transition", fp.String()).
		Msg("key-hint drift detected at completion, rescheduling")

# Output

JSON (production):

	{"level":"info","component":"scheduler","epoch":3,"time":"2026-01-01T00:00:00Z","message":"epoch sweep complete"}

Console (development), via zerolog.ConsoleWriter with RFC 3339 timestamps:

	2026-01-01T00:00:00Z INF epoch sweep complete component=scheduler epoch=3

No subsystem outside cmd/ writes to fmt.Println or the standard library's
log package directly; cmd/ itself reports command failures on standard
error and exits with status 1, without going through the logger.
*/
package log
