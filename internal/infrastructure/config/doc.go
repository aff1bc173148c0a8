// Package config handles loading and validating action core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Every environment override uses the bit-exact MQTT wire contract
// names (MQTT_HOST, ACTIONS_Q_SIZE, STORAGE_ROOT, ...); there are no
// GRAYLOGIC_SECTION_KEY-style overrides, since these names are shared
// with operators deploying alongside the broker.
//
// Usage:
//
//	cfg, err := config.Load("/etc/graylogic/action-core.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
