// Package config handles loading and validating Gray Logic Occupancy configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with OCCUPANCY_* environment variables
//   - Validation of required fields
//   - Default value handling (5s poll, threshold 500,
//     ingest on 5001, web on 5000)
//
// Security Considerations:
//   - MQTT and InfluxDB credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Ingest.DesignatedSeat)
package config
