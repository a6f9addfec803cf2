/*
Package log provides structured logging for KotaDB using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

KotaDB's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("pindex")                  │          │
	│  │  - WithTraceID("c3b1...-handle")             │          │
	│  │  - WithDocumentID("notes/todo.md")          │          │
	│  │  - WithOperation("insert")                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "storage",                  │          │
	│  │    "time": "2026-07-30T10:30:00Z",         │          │
	│  │    "message": "document inserted"            │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-30T10:30:00Z INF document inserted │          │
	│  │    component=storage                        │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all KotaDB packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs (storage, pindex, trigram, ...)
  - WithTraceID: Add the wrapper stack's per-handle trace id
  - WithDocumentID: Add the document path/id under operation
  - WithOperation: Add the op name (insert/get/update/delete/search)

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "evaluating trigram fallback rung 2 of 4"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "document inserted: notes/todo.md (812 bytes)"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "WAL checkpoint deferred, queue depth above threshold"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "failed to persist document: disk full"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "failed to replay WAL: %v"

# Usage

Initializing the Logger:

	import "github.com/kotadb/kotadb/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/kotadb.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("database opened")
	log.Debug("checking WAL for uncheckpointed frames")
	log.Warn("cache near capacity")
	log.Error("failed to open primary index")
	log.Fatal("cannot start without a writable data directory") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("document_id", "notes/todo.md").
		Int("bytes", 812).
		Msg("document inserted")

	log.Logger.Error().
		Err(err).
		Str("op", "get").
		Msg("storage operation failed")

Component Loggers:

	// Create component-specific logger
	storageLog := log.WithComponent("storage")
	storageLog.Info().Msg("opening document store")
	storageLog.Debug().Str("document_id", "a/b.md").Msg("replaying WAL frame")

	// Multiple context fields
	opLog := log.WithComponent("wrapstack").
		With().Str("trace_id", "b3e1-handle").
		Str("op", "insert").Logger()
	opLog.Info().Msg("operation started")
	opLog.Error().Err(err).Msg("operation failed")

Context Logger Helpers:

	// Trace-scoped logs (one per wrapped call)
	traceLog := log.WithTraceID("b3e1-handle")
	traceLog.Info().Msg("entered Retryable layer")

	// Document-scoped logs
	docLog := log.WithDocumentID("notes/todo.md")
	docLog.Info().Msg("content hash recomputed")

	// Operation-scoped logs
	opLog := log.WithOperation("search")
	opLog.Info().Msg("trigram search completed")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/kotadb/kotadb/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("kotadb starting")

		// Component-specific logging
		storageLog := log.WithComponent("storage")
		storageLog.Info().
			Str("document_id", "notes/todo.md").
			Int("bytes", 812).
			Msg("document persisted")

		// Error logging
		err := errors.New("disk full")
		log.Logger.Error().
			Err(err).
			Str("component", "wal").
			Msg("failed to append WAL frame")

		log.Info("kotadb stopped")
	}

# Integration Points

This package integrates with:

  - pkg/storage: Logs document insert/get/update/delete and WAL recovery
  - pkg/pindex, pkg/trigram: Do not log directly; failed index calls are
    logged by the pkg/wrapstack index wrappers
  - pkg/wrapstack: Logs at the Traced layer, one entry per wrapped call
  - pkg/coordinator: Logs coordinated deletions and rollbacks
  - cmd/kotadb: Logs CLI subcommand lifecycle

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"storage","time":"2026-07-30T10:30:00Z","message":"document inserted"}
	{"level":"info","component":"wrapstack","trace_id":"b3e1-handle","time":"2026-07-30T10:30:01Z","message":"operation completed"}
	{"level":"error","component":"pindex","document_id":"notes/a.md","time":"2026-07-30T10:30:02Z","message":"page checksum mismatch"}

Console Format (Development):

	2026-07-30T10:30:00Z INF document inserted component=storage
	2026-07-30T10:30:01Z INF operation completed component=wrapstack trace_id=b3e1-handle
	2026-07-30T10:30:02Z ERR page checksum mismatch component=pindex document_id=notes/a.md

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested wrapper calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Pairs naturally with pkg/kotaerr's typed taxonomy
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Log Level Impact:
  - Debug: High volume (per-page, per-trigram detail), development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Missing Context Fields:
  - Symptom: Logs missing component, trace, or document fields
  - Cause: Using global Logger instead of a context logger
  - Solution: Use WithComponent/WithTraceID/WithDocumentID/WithOperation

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Solution: Use .Str() instead of string interpolation

# Security

Log Content:
  - Never log document payload contents or raw query text
  - Log document ids/paths, not their bodies
  - Use structured fields (prevents log injection)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
