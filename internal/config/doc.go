// Package config handles configuration loading for savedsearch.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Files ending in .toml are decoded as TOML; anything else is
// treated as YAML. Missing optional values are filled with defaults and the
// result is validated before it is returned.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SAVEDSEARCH_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/savedsearch/config.yaml
//  3. ~/.config/savedsearch/config.yaml
//
// Running "savedsearch init" writes a default file to the first of these.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	remote:
//	  request_timeout: "10s"
//	  dedupe_ttl: "5m"
//
// # Example
//
//	database:
//	  path: "~/.local/share/savedsearch/savedsearch.db"
//	  driver: "sqlite"        # or "sqlite3" for the cgo driver
//
//	storage:
//	  order_key: "saved_searches.order"
//	  mapping_key: "saved_searches.pairs"
//
//	remote:
//	  url: "ws://127.0.0.1:8420/sync"
//	  device_id: "laptop"
//
//	server:
//	  http_addr: "127.0.0.1:8420"
//
//	tailscale:
//	  enabled: false
//	  hostname: "savedsearch"
//
//	logging:
//	  level: "info"            # debug, info, warn, error
//	  format: "text"           # text or json
package config
