package compiler

import "github.com/btcsuite/btclog"

// log is disabled until the caller installs a logger with UseLogger.
var log = btclog.Disabled

// UseLogger sets the package logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog stops all package log output.
func DisableLog() {
	log = btclog.Disabled
}
