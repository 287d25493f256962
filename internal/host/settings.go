package host

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fritzlab/fritzbox_exporter/internal/plugin"
	"github.com/spf13/viper"
)

// Settings configure the exporter process. The router section is forwarded
// verbatim to the plugin's config callback; the host does not interpret it.
type Settings struct {
	Listen   string
	Interval time.Duration
	Router   []plugin.ConfigEntry
}

// canonicalKeys is the spelling the plugin recognizes. Viper lowercases map
// keys, so the loader restores the canonical form for the known ones; any
// other key passes through and triggers the plugin's unknown-key warning.
var canonicalKeys = []string{"Address", "Port", "User", "Password", "Hostname", "Instance"}

// LoadSettings reads the exporter configuration file. An empty path yields
// the defaults: listen on :9714, poll every 10 seconds, device-standard
// router connection.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("listen", ":9714")
	v.SetDefault("interval", 10*time.Second)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	s := &Settings{
		Listen:   v.GetString("listen"),
		Interval: v.GetDuration("interval"),
	}
	if s.Interval <= 0 {
		return nil, fmt.Errorf("config %s: interval must be positive", path)
	}

	router := v.GetStringMapString("router")
	for _, key := range canonicalKeys {
		lower := strings.ToLower(key)
		if value, ok := router[lower]; ok {
			s.Router = append(s.Router, plugin.ConfigEntry{Key: key, Values: []string{value}})
			delete(router, lower)
		}
	}
	extra := make([]string, 0, len(router))
	for key := range router {
		extra = append(extra, key)
	}
	slices.Sort(extra)
	for _, key := range extra {
		s.Router = append(s.Router, plugin.ConfigEntry{Key: key, Values: []string{router[key]}})
	}

	return s, nil
}
