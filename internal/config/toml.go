// Package config provides configuration defaults, XDG paths and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	BrandsFile *string      `toml:"brands-file"`
	Poll       PollConfig   `toml:"poll"`
	Stats      StatsConfig  `toml:"stats"`
	Setup      SetupConfig  `toml:"setup"`
	Source     SourceConfig `toml:"source"`
	MQTT       MQTTConfig   `toml:"mqtt"`
	HTTP       HTTPConfig   `toml:"http"`
	GPIO       GPIOConfig   `toml:"gpio"`
}

// PollConfig maps the sampling loop settings. Durations use Go syntax
// ("200ms", "1s").
type PollConfig struct {
	IdleInterval   *string `toml:"idle-interval"`
	ActiveInterval *string `toml:"active-interval"`
	ReadTimeout    *string `toml:"read-timeout"`
}

// StatsConfig maps driver statistics settings.
type StatsConfig struct {
	Classification *string `toml:"classification"`
	PodiumByClass  *bool   `toml:"podium-by-class"`
	DB             *string `toml:"db"`
}

// SetupConfig maps setup capture settings.
type SetupConfig struct {
	Enabled    *bool   `toml:"enabled"`
	Dir        *string `toml:"dir"`
	Identifier *string `toml:"identifier"`
	Ext        *string `toml:"ext"`
}

// SourceConfig selects where telemetry comes from.
type SourceConfig struct {
	Kind   *string `toml:"kind"`
	Path   *string `toml:"path"`
	Topic  *string `toml:"topic"`
	Broker *string `toml:"broker"`
}

// MQTTConfig maps event publishing settings.
type MQTTConfig struct {
	Broker    *string `toml:"broker"`
	Heartbeat *string `toml:"heartbeat"`
	ClientID  *string `toml:"client-id"`
}

// HTTPConfig maps the status server settings.
type HTTPConfig struct {
	Addr *string `toml:"addr"`
}

// GPIOConfig maps the optional pause switch.
type GPIOConfig struct {
	Chip     *string `toml:"chip"`
	PausePin *int    `toml:"pause-pin"`
	Mode     *string `toml:"mode"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
