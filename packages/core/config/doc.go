// Package config handles configuration loading for hitfetch.
//
// Settings are layered, later layers winning:
//   - Built-in defaults
//   - A JSON or YAML config file (.hitfetch.json, .hitfetch.yaml, ...)
//   - HITFETCH_* environment variables, optionally loaded from a .env file
//   - Command line flags, applied by the CLI
package config
