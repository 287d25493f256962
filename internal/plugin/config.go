package plugin

import (
	"fmt"
	"strconv"
)

// Device-standard connection defaults, matching what the router answers on
// when it has not been given a LAN address yet.
const (
	DefaultAddress = "169.254.1.1"
	DefaultPort    = 49000
)

// ConfigEntry is one raw configuration entry as delivered by the host.
// The host passes exactly one value per key.
type ConfigEntry struct {
	Key    string
	Values []string
}

// ConnectionConfig describes how to reach the router and how to label the
// records read from it. Hostname and Instance are optional; an empty Hostname
// falls back to the device-reported model name.
type ConnectionConfig struct {
	Address  string
	Port     int
	User     string
	Password string
	Hostname string
	Instance string
}

func defaultConfig() ConnectionConfig {
	return ConnectionConfig{
		Address: DefaultAddress,
		Port:    DefaultPort,
	}
}

// resolveConfig folds raw entries into a ConnectionConfig. Keys are matched
// case-sensitively; unrecognized keys produce a warning and are skipped, they
// never abort resolution. A Port value that does not parse as an integer is
// returned as a deferred error so that the host's config callback still
// completes; Init surfaces it as the connection failure it will become.
func resolveConfig(entries []ConfigEntry, warn func(string)) (ConnectionConfig, error) {
	cfg := defaultConfig()

	var deferred error

	for _, e := range entries {
		if len(e.Values) == 0 {
			warn(fmt.Sprintf("fritzbox plugin: config key %q has no value", e.Key))
			continue
		}

		value := e.Values[0]

		switch e.Key {
		case "Address":
			cfg.Address = value
		case "Port":
			port, err := strconv.Atoi(value)
			if err != nil {
				warn(fmt.Sprintf("fritzbox plugin: Port %q is not an integer", value))
				deferred = fmt.Errorf("invalid Port %q: %w", value, err)
				continue
			}
			cfg.Port = port
		case "User":
			cfg.User = value
		case "Password":
			cfg.Password = value
		case "Hostname":
			cfg.Hostname = value
		case "Instance":
			cfg.Instance = value
		default:
			warn(fmt.Sprintf("fritzbox plugin: unknown config key %q", e.Key))
		}
	}

	return cfg, deferred
}
