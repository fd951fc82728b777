// Package config loads, validates, and normalizes the TOML
// configuration shared by the reelflow daemon and CLI.
package config
