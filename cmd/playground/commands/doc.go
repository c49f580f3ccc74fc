// Package commands defines the playground CLI.
//
// Commands
//
//   - keygen          Write a new ed25519 keypair file
//   - airdrop         Credit lamports to an account
//   - deploy          Install the playground program on the ledger
//   - create-counter  Create counter record 1 or 2
//   - close-accounts  Sweep accounts into the upgrade authority
//   - account         Show an account
//   - receipt         Show journaled transaction receipts
//   - snapshot        Export or import the ledger
//   - version         Print the version
//
// # Implementation
//
// The root command loads the YAML configuration, applies flag overrides and
// starts a node (ledger, journal and executor) before any subcommand that
// needs one runs. The node is stopped after the subcommand returns so the
// ledger is flushed on every invocation.
package commands
