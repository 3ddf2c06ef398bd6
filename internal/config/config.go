// Package config loads host configuration and builds the logger.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Load builds the host's Viper configuration. configPath may be empty, in
// which case cinch.yaml is searched for in the working directory and
// ~/.config/cinch; a missing file is not an error, defaults apply.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("plugins.prefix", "!")
	v.SetDefault("plugins.suffix", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("cinch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/cinch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath == "" && errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return v, nil
}
