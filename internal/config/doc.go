// Package config provides configuration management for netmeter.
//
// Configuration is assembled from three layers, later layers winning:
// built-in defaults, an optional YAML file (.netmeter in the current or
// home directory), and CLI flags. The resulting Config is passed through
// the application by dependency injection; there is no global state.
package config
