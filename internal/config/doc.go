// Package config handles configuration loading for shellrelay.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension)
// with environment variable expansion, layered over built-in defaults.
// Every field is optional; an absent file means the defaults are used.
//
// # Environment Variable Expansion
//
// Values can reference environment variables:
//
//	listen:
//	  host: "${RELAY_HOST}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// The two response windows use Go's time.ParseDuration syntax:
//
//	session:
//	  first_output_timeout: "2s"   # wait for the first chunk
//	  settle_timeout: "200ms"      # gap that ends a response
//
// # Example
//
//	listen:
//	  host: "127.0.0.1"
//	  port: 4444
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text or json
//	console:
//	  prompt: "relay> "
//	  no_color: false
//
// The same keys are used in TOML:
//
//	[listen]
//	host = "0.0.0.0"
//	port = 4444
package config
