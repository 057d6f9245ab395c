// Package commands defines the walletconnect CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - client-id                          Print the relay client id
//   - pair create|connect|list|ping|delete
//   - session list|update|extend|ping|delete
//   - listen                             Stay connected and print peer events
//
// # Implementation
//
// The root command loads the TOML config, applies flag overrides and builds
// the dependency graph (stores, relay client, engines) before any subcommand
// runs. Commands that talk to a peer wait for the relay connection first.
package commands
