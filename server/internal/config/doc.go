// Package config loads the `server:` and `origin:` sections of config.yaml
// for the public server binary. The `cache:` key in the same file is ignored.
package config
