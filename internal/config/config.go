// Package config loads keycrypt settings from an optional YAML file and
// KEYCRYPT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"keycrypt/internal/keystore"
)

// EnvConfigFile names the environment variable holding an explicit config file.
const EnvConfigFile = "KEYCRYPT_CONFIG"

// Config holds the resolved settings.
type Config struct {
	// KeystoreRoot is the default keystore directory; empty means the home directory.
	KeystoreRoot string
	// KeystoreFile is the keystore file name inside a root.
	KeystoreFile string
	LogLevel     string
}

var defaults = map[string]any{
	"keystore.root": "",
	"keystore.file": keystore.DefaultFileName,
	"log.level":     "warn",
}

// Load resolves the configuration. An explicit file must exist; the default
// file in the user config directory is optional.
func Load(file string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("KEYCRYPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("keycrypt")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "keycrypt"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	return Config{
		KeystoreRoot: v.GetString("keystore.root"),
		KeystoreFile: v.GetString("keystore.file"),
		LogLevel:     v.GetString("log.level"),
	}, nil
}
