// Package logging provides structured logging for Gray Logic Occupancy.
//
// It wraps the standard log/slog package so that every component logs with
// the same handler, level and default fields (service, version).
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("ingest").Info("listening", "addr", addr)
//
// Never log MQTT or InfluxDB credentials.
package logging
