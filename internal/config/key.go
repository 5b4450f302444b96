// Package config provides unified configuration loading from a TOML
// file, environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix OHM_)
//  3. Config file (config.toml, path given on the command line)
//  4. Compiled defaults
package config

// Viper keys for network configuration.
const (
	keyNetPort = "net.port"
)

// Viper keys for CA / certificate configuration.
const (
	keyCAPemRelativePath = "ca.pem_relative_path"
	keyCAKeyRelativePath = "ca.key_relative_path"
)

// Viper keys for datastore configuration.
const (
	keyDBURL                    = "db.db_url"
	keyDBName                   = "db.db_name"
	keyDBTrafficCollectionName  = "db.traffic_collection_name"
	keyDBAuthCollectionName     = "db.auth_collection_name"
)

// Viper keys for filter-chain configuration.
const (
	keyFilterAllowListHosts    = "filter.allow_list_hosts"
	keyFilterDenyListHosts     = "filter.deny_list_hosts"
	keyFilterIdentityProviders = "filter.identity_providers"
)

// Viper keys for optional observability configuration.
const (
	keyObservabilityListenAddress = "observability.listen_address"
)
