// Package logging provides structured logging for servedeck.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (project, channel, request)
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithProjectID(ctx, project.ID)
//	ctx = logging.WithChannel(ctx, "status")
//	logger.Info(ctx, "status merged", zap.String("status", "running"))
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2026-10-17T10:15:30Z",
//	  "level": "info",
//	  "msg": "status merged",
//	  "project.id": "6f1c...",
//	  "channel": "status",
//	  "status": "running"
//	}
//
// # Sampling
//
// Below-error entries are sampled per tick once sampling is enabled. The
// filesystem watcher can produce bursts of identical entries when an editor
// saves a file several times in a row. Error and above are never sampled.
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//
// # Concurrency Safety
//
// Logger is safe for concurrent use. Child loggers (With, Named) are
// independent and do not affect parent or siblings.
package logging
