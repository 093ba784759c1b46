// Package config handles loading and validating the AMS auth service
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with AMS_* environment variables
//   - Validation of required fields and signing secrets
//   - Default value handling
//
// The access and refresh signing secrets should be supplied through
// AMS_JWT_ACCESS_SECRET and AMS_JWT_REFRESH_SECRET rather than committed to
// the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Service.Name)
package config
