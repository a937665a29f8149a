// Package common holds process-wide constants and the logger setup shared by
// the ledger binaries.
package common

// Version is overridden at build time with -ldflags "-X .../common.Version=...".
var Version = "dev"

const PackageName = "vaccine-ledger"
