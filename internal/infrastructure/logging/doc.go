// Package logging builds the slog logger every hvcrate component writes
// through.
//
// Entries carry service and version attributes, and Component adds the
// subsystem. JSON is the default; format "text" suits the console.
// Attributes named like credentials (password, secret, authorization,
// *_auth_token, *_api_token) are replaced with [REDACTED] by the handler,
// so a stray config value cannot leak. A plain "token" attribute is a
// parameter token number and is kept.
//
//	log := logging.New(cfg.Logging, version).Component("bridge")
//	log.Warn("read failed", "token", 12, "error", err)
package logging
