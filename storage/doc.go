// Package storage provides content-addressed storage for ledger snapshots.
//
// Every backend implements interfaces.StorageBackend and identifies content by
// the SHA-256 hash of its bytes, so the same snapshot always lands under the
// same identifier regardless of where it is written:
//
//   - file:///var/lib/ledger/snapshots
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-west-2&endpoint=...&path_style=true
//   - ipfs://localhost:5001/vaccine-ledger?timeout=30s (MFS)
//   - vault://vault.example.com:8200/secret/vaccine-ledger?tls=true (KV v2, token from VAULT_TOKEN)
//
// Plain and sealed snapshots are kept in separate namespaces per backend.
//
// StorageBackendFactory turns location URIs into backends, and
// MultiStorageBackend replicates writes to several of them while reading from
// the first one that answers.
package storage
