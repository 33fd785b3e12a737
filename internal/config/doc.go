// Package config provides configuration loading and validation for the live transcriber.
// It handles YAML-based configuration with per-section struct validation and
// environment fallbacks for credentials.
package config
