// Package ledger implements the vaccine research network state machine.
//
// A Network combines three record maps over one StateStore:
//
//   - the Registry of researchers, admitted once their balance of a fungible
//     token reaches the admission threshold (RegisterResearcher)
//   - the Submission Ledger of genome-data records, accepted from registered
//     researchers only (SubmitGenomeData)
//   - the Validator Directory of weighted validators, managed by the
//     deployment owner (AddValidator)
//
// Every mutating operation validates its arguments first and commits at most
// one Changeset. A commit advances the ledger height by one and appends one
// Event to the journal. Rejections carry a stable code (see interfaces.CodeOf)
// and leave the store untouched:
//
//	1001 UNAUTHORIZED          not the owner / not a registered researcher
//	1002 INVALID-SUBMISSION    malformed text argument
//	1004 INSUFFICIENT-FUNDS    balance below the admission threshold
//	1005 ALREADY-REGISTERED    researcher registered twice
//	1006 DUPLICATE-SUBMISSION  genome id already taken
//
// The full state can be exported as a JSON snapshot to content-addressed
// storage, optionally sealed with a passphrase, and restored into an empty store.
package ledger
