package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "SETTLECTL"
	configName        = "settlectl"
	keyConfig         = "config"
	keyLogLevel       = "log-level"
	keyMaxTouchedKeys = "max-touched-keys"
	keyTransfer       = "transfer"
)

func bindEnv(cfg *viper.Viper) {
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
}

// loadConfig reads the file named by --config, or settlectl.yaml from the
// working directory when present. A missing default file is not an error.
func loadConfig(cfg *viper.Viper) error {
	if path := cfg.GetString(keyConfig); path != "" {
		cfg.SetConfigFile(path)
	} else {
		cfg.SetConfigName(configName)
		cfg.SetConfigType("yaml")
		cfg.AddConfigPath(".")
	}

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func newLogger(cfg *viper.Viper, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.GetString(keyLogLevel))); err != nil {
		return nil, fmt.Errorf("parse %s: %w", keyLogLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
