// Package statedb provides the ledger state stores: an in-memory store for
// tests and ephemeral deployments, and a persistent LevelDB store where every
// Changeset is written as one atomic batch.
package statedb
