package ai

import "sync/atomic"

// debugLoggingEnabled guards per-tick debug logs of NPC controllers.
var debugLoggingEnabled atomic.Bool

// EnableDebugLogging enables or disables debug logging for AI subsystem.
// Called from main.go after parsing config.LogLevel.
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled returns true if debug logging is enabled.
//
//	if ai.IsDebugEnabled() {
//	    slog.Debug("npc state changed", "npc", id, "to", state)
//	}
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}
