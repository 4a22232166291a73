// Package config holds the runtime configuration of covidboard.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. COVIDBOARD_DATA_PATH.
const EnvPrefix = "COVIDBOARD"

type Config struct {
	Data   DataConfig   `mapstructure:"data"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type DataConfig struct {
	// Path is the cleaned CSV dataset.
	Path string `mapstructure:"path"`
	// Presets is an optional YAML file of named filter criteria.
	Presets string `mapstructure:"presets"`
}

type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	RateLimit   float64  `mapstructure:"rate_limit"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Verbose int  `mapstructure:"verbose"`
	Local   bool `mapstructure:"local"`
}

func Default() *Config {
	return &Config{
		Data: DataConfig{
			Path: "cleaned_covid_data.csv",
		},
		Server: ServerConfig{
			Address:     ":8080",
			RateLimit:   20,
			CORSOrigins: []string{"*"},
		},
	}
}

// NewViper returns a viper instance wired to the config file search path and
// COVIDBOARD_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("covidboard")
	v.AddConfigPath("config")
	v.AddConfigPath("$HOME/.covidboard")
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("data.path", def.Data.Path)
	v.SetDefault("data.presets", def.Data.Presets)
	v.SetDefault("server.address", def.Server.Address)
	v.SetDefault("server.rate_limit", def.Server.RateLimit)
	v.SetDefault("server.cors_origins", def.Server.CORSOrigins)
	v.SetDefault("log.verbose", def.Log.Verbose)
	v.SetDefault("log.local", def.Log.Local)
	return v
}

// ReadFile loads an explicit config file, or searches the default paths when
// path is empty. A missing file in the search path is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	}
	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
		return nil
	}
	return errors.Wrap(err, "unable to read config file")
}

// FromViper decodes v on top of the defaults and validates the result.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Data.Path) == "" {
		return errors.New("data.path is required")
	}
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if c.Log.Verbose < 0 {
		return errors.New("log.verbose must not be negative")
	}
	return nil
}
