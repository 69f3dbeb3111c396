/*
Package log provides structured logging for the storage broker using
zerolog.

The log package wraps the zerolog library to provide JSON-structured
logging with component-specific loggers, configurable log levels, and
helper functions for common logging patterns. All logs include
timestamps and support filtering by severity level.

# Log Levels

Debug Level:
  - Purpose: Detailed internal state useful only when diagnosing a problem
  - Example: "resolved device identifier: /dev/sda -> sda"

Info Level:
  - Purpose: General informational messages, the default production level
  - Example: "formatted /dev/sdb1 as ext4"

Warn Level:
  - Purpose: Situations that may need attention but aren't failures
  - Example: "failed to emit D-Bus signal"

Error Level:
  - Purpose: Operation failures that need investigation
  - Example: "unlock failed: no key slots matched"

Fatal Level:
  - Purpose: Unrecoverable startup errors; logs and calls os.Exit(1)
  - Example: "failed to connect to system bus"

# Usage

Initializing the logger:

	import "github.com/storagebroker/service/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("daemon starting")
	log.Errorf("unlock failed", err)

Structured logging:

	log.Logger.Info().
		Str("device", "/dev/sdb1").
		Str("fsType", "ext4").
		Msg("format complete")

Component loggers:

	handlerLog := log.WithComponent("handlers")
	handlerLog.Debug().Msg("authorizing request")

Context logger helpers:

	deviceLog := log.WithDevice("/dev/sdb1")
	deviceLog.Info().Msg("mounted")

	opLog := log.WithOperation(operationID)
	opLog.Info().Uint64("completed", completed).Msg("progress")

	handlerScopedLog := log.WithHandler("luks")
	handlerScopedLog.Warn().Msg("passphrase rejected")

# Integration Points

This package is used by pkg/adapter/udisks for device diagnostics, by
pkg/busserver for bus-layer errors, by pkg/imageengine for operation
lifecycle events, by pkg/hotplug for bridge diagnostics, by pkg/ui for
its component logger, and by cmd/storage-serviced. The handlers in
pkg/handlers and cmd/storage-ctl do not log through it.

# Log Output Examples

JSON format:

	{"level":"info","component":"handlers","device":"/dev/sdb1","time":"2026-01-01T10:30:00Z","message":"mounted"}

Console format:

	2026-01-01T10:30:00Z INF mounted component=handlers device=/dev/sdb1
*/
package log
