// Package logging provides structured logging for the AMS auth service.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filtering. Attributes named after
// credentials (password, token, authorization, secret and the access and
// refresh token keys) are replaced with [REDACTED] before they are written.
//
// Logging is configured via LoggingConfig:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 3000)
//	logger.Error("failed to connect", "error", err)
package logging
