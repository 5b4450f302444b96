package config

import "strings"

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// Options defines every configuration entry the proxy understands.
// Each entry is registered as a viper default and a CLI flag.
var Options = []Option{
	{Key: keyNetPort, Flag: toFlag(keyNetPort), Default: 8080, Description: "TCP port the proxy listener binds to on 127.0.0.1"},
	{Key: keyCAPemRelativePath, Flag: toFlag(keyCAPemRelativePath), Default: "./ca/ohm.pem", Description: "Path to the CA certificate PEM file"},
	{Key: keyCAKeyRelativePath, Flag: toFlag(keyCAKeyRelativePath), Default: "./ca/ohm.key", Description: "Path to the CA private key PEM file"},
	{Key: keyDBURL, Flag: toFlag(keyDBURL), Default: "mongodb://localhost:27017", Description: "MongoDB connection URI"},
	{Key: keyDBName, Flag: toFlag(keyDBName), Default: "ohm", Description: "MongoDB database name"},
	{Key: keyDBTrafficCollectionName, Flag: toFlag(keyDBTrafficCollectionName), Default: "traffic", Description: "MongoDB collection storing captured Traffic records"},
	{Key: keyDBAuthCollectionName, Flag: toFlag(keyDBAuthCollectionName), Default: "auth", Description: "MongoDB collection storing captured AuthInfo records"},
	{Key: keyFilterAllowListHosts, Flag: toFlag(keyFilterAllowListHosts), Default: []string{}, Description: "Hosts that must match for traffic to be captured (empty allows everything)"},
	{Key: keyFilterDenyListHosts, Flag: toFlag(keyFilterDenyListHosts), Default: []string{}, Description: "Hosts whose traffic is never captured"},
	{Key: keyFilterIdentityProviders, Flag: toFlag(keyFilterIdentityProviders), Default: []string{}, Description: "Hosts treated as identity providers and diverted to the auth side channel"},
	{Key: keyObservabilityListenAddress, Flag: toFlag(keyObservabilityListenAddress), Default: "", Description: "Optional listen address for the Prometheus metrics endpoint (empty disables it)"},
}

// toFlag converts a viper key like "filter.allow_list_hosts" into a
// CLI flag like "filter-allow-list-hosts" by lower-casing and
// replacing dots and underscores with hyphens.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	return flag
}
