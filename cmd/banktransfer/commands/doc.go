// Package commands defines the banktransfer CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - transfer       Run the transfer workflow (auth, validate, balance, transfer, history)
//   - history        Show recent transactions (authenticates first)
//   - accounts       List accounts known to the service
//   - balance        Show the balance of one account
//   - validate       Check whether an account exists
//   - token          Fetch a token and verify it with the service
//   - config init    Write the effective configuration to a file
//   - config show    Print the effective configuration
//
// # Implementation
//
// The root command loads configuration (defaults, file, environment, flags)
// and builds the dependency graph before any subcommand runs. Failures map to
// distinct exit codes: 2 for usage errors and one code per error kind.
package commands
