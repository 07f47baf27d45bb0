// Package config loads server configuration from OMNI_ORCH_* environment
// variables with sensible defaults, validated once at startup.
package config
