// Package logger provides the structured logging interface used across dycrawler.
//
// It wraps zerolog with a small interface so that components can be handed a
// logger, a no-op logger, or a capturing TestLogger interchangeably.
//
//	cfg := &config.LoggingConfig{Level: "debug", File: "dycrawler.log"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger().WithField("sec_user_id", id)
//	log.InfoWithFields("page fetched", map[string]interface{}{
//	    "page":  2,
//	    "items": 18,
//	})
//
// Console output goes to stderr. When a file is configured, entries are
// written to both the console and the file.
package logger
