// Package config loads the `cache:` and `origin:` sections of config.yaml for
// the cache binary and watches the file for hot reloads.
//
// Only the log level is applied on reload; pools, ports and intervals are
// read once at startup and a restart is required to change them.
package config
