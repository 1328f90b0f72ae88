// Package config loads the proxy configuration from a TOML file and PROXEE_*
// environment variables. It covers the listen address, the load-balancing
// method, the ordered backend list, the metrics endpoint and logging.
package config
