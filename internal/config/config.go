package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config wraps a viper instance and provides typed accessors for
// every configuration key. Create one via Load.
type Config struct {
	v *viper.Viper
}

// Load initialises a Config by loading values from environment
// variables, the given TOML file, and compiled defaults (in that
// priority order; CLI flags, bound later via BindFlags, take highest
// priority).
//
// path may be empty, in which case no config file is read and
// compiled defaults apply unless overridden by the environment or
// flags.
func Load(path string) (*Config, error) {
	v := viper.New()

	for _, o := range Options {
		v.SetDefault(o.Key, o.Default)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFoundErr viper.ConfigFileNotFoundError
			if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	// Environment variables are prefixed with OHM_ and use
	// underscores in place of dots (e.g. OHM_NET_PORT).
	v.SetEnvPrefix("OHM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers CLI flags for every known option and binds
// them to the underlying viper keys so that flag values override
// file and environment sources.
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	for _, o := range Options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

// NetPort returns the TCP port the proxy listener binds to.
func (c *Config) NetPort() int {
	return c.v.GetInt(keyNetPort)
}

// CAPemRelativePath returns the path to the CA certificate PEM file.
func (c *Config) CAPemRelativePath() string {
	return c.v.GetString(keyCAPemRelativePath)
}

// CAKeyRelativePath returns the path to the CA private key PEM file.
func (c *Config) CAKeyRelativePath() string {
	return c.v.GetString(keyCAKeyRelativePath)
}

// DBURL returns the MongoDB connection URI.
func (c *Config) DBURL() string {
	return c.v.GetString(keyDBURL)
}

// DBName returns the MongoDB database name.
func (c *Config) DBName() string {
	return c.v.GetString(keyDBName)
}

// DBTrafficCollectionName returns the collection storing captured
// Traffic records.
func (c *Config) DBTrafficCollectionName() string {
	return c.v.GetString(keyDBTrafficCollectionName)
}

// DBAuthCollectionName returns the collection storing captured
// AuthInfo records.
func (c *Config) DBAuthCollectionName() string {
	return c.v.GetString(keyDBAuthCollectionName)
}

// FilterAllowListHosts returns the allow-list host substrings. An
// empty list allows every host through.
func (c *Config) FilterAllowListHosts() []string {
	return c.v.GetStringSlice(keyFilterAllowListHosts)
}

// FilterDenyListHosts returns the deny-list host substrings.
func (c *Config) FilterDenyListHosts() []string {
	return c.v.GetStringSlice(keyFilterDenyListHosts)
}

// FilterIdentityProviders returns the host substrings treated as
// identity providers.
func (c *Config) FilterIdentityProviders() []string {
	return c.v.GetStringSlice(keyFilterIdentityProviders)
}

// ObservabilityListenAddress returns the optional metrics listener
// address. An empty string disables the metrics listener.
func (c *Config) ObservabilityListenAddress() string {
	return c.v.GetString(keyObservabilityListenAddress)
}
