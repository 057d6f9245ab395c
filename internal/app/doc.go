// Package app wires application dependencies for the CLI.
//
// It loads Config from TOML, builds the stores, relay client and protocol
// engines, and exposes them via the Wire struct for commands to use.
package app
