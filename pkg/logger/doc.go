// Package logger provides structured logging for callrate.
//
// It wraps zerolog behind the Logger interface so components can take a
// logger as a dependency and tests can substitute TestLogger.
//
//	cfg := &config.LoggingConfig{Level: "debug"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger().WithField("component", "runner")
//	log.InfoWithFields("Run completed", map[string]interface{}{
//	    "run":      3,
//	    "duration": 120 * time.Millisecond,
//	})
//
// Console output goes to stderr. When LoggingConfig.File is set, records
// are written to both the console and the file.
package logger
