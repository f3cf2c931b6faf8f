package internal

import (
	"fmt"

	"github.com/hbomb79/mediaload/internal/api"
	"github.com/hbomb79/mediaload/internal/download"
	"github.com/hbomb79/mediaload/internal/engine"
	"github.com/hbomb79/mediaload/internal/library"
	"github.com/hbomb79/mediaload/internal/settings"
	"github.com/ilyakaznacheev/cleanenv"
)

// MediaLoadConfig is the process configuration, supplied by an optional YAML
// file and/or environment variables. User-facing preferences (download directory,
// default qualities, etc) live in the settings file instead; see SettingsPath.
type MediaLoadConfig struct {
	RestConfig api.RestConfig  `yaml:"api"`
	Downloads  download.Config `yaml:"downloads"`
	Engine     engine.Config   `yaml:"engine"`
	Library    library.Config  `yaml:"library"`

	// Path to the settings file. Defaults to ~/.mediaload/config/settings.conf
	SettingsPath string `yaml:"settings_path" env:"SETTINGS_PATH"`

	// Minimum level of log messages to print (e.g. DEBUG, INFO, WARNING)
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
}

// LoadFromFile reads a configuration file formatted in YAML in to the
// config, with environment variables taking precedence.
func (config *MediaLoadConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	return nil
}

// LoadFromEnv populates the config using only environment variables (and the
// defaults declared on the config struct tags).
func (config *MediaLoadConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return nil
}

// resolveSettingsPath returns the settings path from the config, falling back to
// the default location inside the MediaLoad install directory.
func (config *MediaLoadConfig) resolveSettingsPath() (string, error) {
	if config.SettingsPath != "" {
		return config.SettingsPath, nil
	}

	return settings.DefaultPath()
}

// ConfigUsage returns a description of every environment variable understood
// by MediaLoadConfig, suitable for printing as CLI help.
func ConfigUsage() string {
	var config MediaLoadConfig
	usage, err := cleanenv.GetDescription(&config, nil)
	if err != nil {
		return err.Error()
	}

	return usage
}
