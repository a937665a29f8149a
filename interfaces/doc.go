// Package interfaces defines core interfaces and types for the vaccine research
// ledger, separating interface definitions from implementations.
//
// # Ledger
//
// Ledger: the state machine behind researcher registration, genome-data
// submission and validator management, plus its read-only getters.
//
// LedgerError / ErrorCode: the stable numeric rejection codes (1001..1006).
// A rejected operation never changes state.
//
// # Collaborators
//
// BalanceOracle: read-only token balance queries used by the registration gate.
//
// StateStore: persistence of the three record maps, the owner, the ledger
// height and the event journal. Mutations arrive as one atomic Changeset.
//
// StorageBackend: content-addressed storage for ledger snapshots across
// multiple backend types (file, S3, IPFS, Vault).
//
// # Types
//
//   - Principal: 20-byte address identifying callers, tokens and validators
//   - Researcher, GenomeSubmission, Validator: the records of the three maps
//   - Event: journal entry appended by every committed mutation
//   - ContentID: 32-byte SHA-256 hash for content addressing
package interfaces
