// Package config handles loading and validating camera server configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with CAMSERVER_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/camserver.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Camera.Capacity)
package config
