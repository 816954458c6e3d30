// Package app loads configuration and wires application dependencies for the
// CLI.
//
// Configuration is layered: built-in defaults, then an optional YAML (or
// JSON) file, then environment variables, optionally seeded from a .env
// file. Command flags are applied on top by the caller. NewWire builds the
// logger, metrics registry, transport, token manager, gateways and transfer
// workflow from a validated Config.
package app
