// Package config handles loading and validating Gray Logic Remote configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//   - Pairing credentials are never part of the configuration
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.GetScanTimeout())
package config
