package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration
type Config struct {
	// Server settings
	Server struct {
		Name     string `yaml:"name" toml:"name" json:"name" env:"IRCHIVE_SERVER_NAME"`
		Network  string `yaml:"network" toml:"network" json:"network" env:"IRCHIVE_NETWORK"`
		Host     string `yaml:"host" toml:"host" json:"host" env:"IRCHIVE_HOST"`
		Port     int    `yaml:"port" toml:"port" json:"port" env:"IRCHIVE_PORT"`
		Password string `yaml:"password" toml:"password" json:"password" env:"IRCHIVE_PASSWORD"`
	} `yaml:"server" toml:"server" json:"server"`

	// Admin HTTP endpoint (status + metrics)
	Admin struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCHIVE_ADMIN_ENABLED"`
		Host    string `yaml:"host" toml:"host" json:"host" env:"IRCHIVE_ADMIN_HOST"`
		Port    int    `yaml:"port" toml:"port" json:"port" env:"IRCHIVE_ADMIN_PORT"`
	} `yaml:"admin" toml:"admin" json:"admin"`
}

// Default returns a configuration populated with defaults
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "localhost"
	cfg.Server.Network = "IRCHive"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 6667
	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8080
	return cfg
}

// Load loads configuration from a file, falling back to defaults when the
// source is empty. Environment variables override file values.
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFromFile(source); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a file, choosing the format by
// extension (YAML by default)
func (c *Config) loadFromFile(source string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch {
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem())
}

// applyEnvOverridesRecursive recursively applies environment variable overrides
func applyEnvOverridesRecursive(v reflect.Value) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if field.PkgPath != "" {
			continue
		}

		if envTag := field.Tag.Get("env"); envTag != "" {
			if envValue, exists := os.LookupEnv(envTag); exists {
				setFieldFromEnv(fieldValue, envValue)
			}
		} else if field.Type.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(fieldValue)
		}
	}
}

// setFieldFromEnv sets a field's value from an environment variable
func setFieldFromEnv(field reflect.Value, envValue string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			field.SetInt(v)
		}
	case reflect.Bool:
		s := strings.ToLower(envValue)
		field.SetBool(s == "true" || s == "1" || s == "yes" || s == "y")
	}
}

// GetListenAddress returns the formatted listen address for the server
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetAdminListenAddress returns the formatted listen address for the admin endpoint
func (c *Config) GetAdminListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}
