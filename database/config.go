/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tomoncle/quarry/utils"
)

const (
	// EnvPrefix prefixes environment keys, QUARRY_CONNECTION_HOST sets
	// connection.host.
	EnvPrefix = "QUARRY"

	configName = "quarry"
	configType = "yaml"
)

// NewViper loads .env files into the environment and reads the YAML config
// at path. An empty path searches quarry.yaml in . and ./configs and a
// missing search result is not an error; an explicit path must exist.
func NewViper(path string) (*viper.Viper, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, "", reflect.ValueOf(*DefaultConfig()))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// LoadConfig is NewViper followed by DecodeConfig.
func LoadConfig(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return DecodeConfig(v)
}

func DecodeConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv loads ./.env and the .env next to the config file. Variables
// already set in the process win.
func loadDotEnv(configPath string) error {
	files := []string{".env"}
	if configPath != "" {
		if dir := filepath.Dir(configPath); dir != "." {
			files = append(files, filepath.Join(dir, ".env"))
		}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults registers every mapstructure key of val so AutomaticEnv can
// override keys absent from the file.
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		fv := val.Field(i)
		if fv.Kind() == reflect.Struct && fv.Type().PkgPath() != "time" {
			setDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// ApplyRuntime pushes the settings that may change without reconnecting:
// log level, query log switches and the slow query threshold.
func ApplyRuntime(manager AbstractDatabaseManager, cfg *Config) {
	if cfg.Log.Level != "" {
		utils.ConfigureLogLevel(cfg.Log.Level)
	}
	if manager == nil {
		return
	}
	hooks := manager.Hooks()
	if hooks == nil {
		return
	}
	hooks.Query.SetEnabled(cfg.Connection.EnableQueryLog, cfg.Connection.VerboseQueryLog)
	hooks.Slow.SetThreshold(cfg.Connection.SlowQueryTime)
}

// WatchConfig re-applies runtime settings whenever the config file changes.
// onChange, if set, receives every successfully decoded config.
func WatchConfig(v *viper.Viper, manager AbstractDatabaseManager, onChange func(*Config)) {
	logger := GetLogger()
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := DecodeConfig(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", "file", e.Name, "error", err)
			return
		}
		ApplyRuntime(manager, cfg)
		logger.Info("Configuration reloaded", "file", e.Name, "op", e.Op.String())
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
