// Package logging provides structured logging for Atmos Core.
//
// It wraps the standard library's log/slog with configuration-driven
// format and level selection, and stamps every record with the service
// name and build version. Components derive their own loggers via With:
//
//	log := logging.New(cfg.Logging, version)
//	hueLog := log.With("component", "hue")
//
// Before configuration is available, use logging.Default().
package logging
