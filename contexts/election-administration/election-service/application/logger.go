package application

import "log/slog"

// Module is the value of the "module" attribute on every log line emitted by
// the election service.
const Module = "election-administration/election-service"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
