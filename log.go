package zxc

import "log/slog"

// Global logger for the engine. Diagnostics only; never load-bearing.
var log = slog.Default()

// SetLogger configures the global logger
func SetLogger(l *slog.Logger) {
	log = l
}
