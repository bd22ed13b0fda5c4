// Package config loads hvcrate.yaml.
//
// Defaults come first, then the file, then HVCRATE_* environment
// variables. Credentials (crate, broker, InfluxDB token, JWT secret) are
// best supplied through the environment so the file can be shared.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.GetPollInterval()
package config
