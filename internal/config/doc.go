// Package config loads, validates, and normalizes the fetchd TOML
// configuration. Defaults come from Default; Load overlays a config file on
// top of them and expands all path fields.
package config
