/*
Package api defines the wire contract of the vaccine research ledger HTTP API:
request and response bodies, the request signing scheme and the server
configuration. The clients subpackage implements a Go client for it.

# Authentication

Mutating requests are signed by the caller's secp256k1 key. The caller's
address travels in X-Ledger-Caller, a unix timestamp in X-Ledger-Timestamp, a
caller-chosen nonce of at most 64 bytes in X-Ledger-Nonce and a 65-byte hex
signature in X-Ledger-Signature. The signature covers the EIP-191 hash of

	METHOD\nPATH\nTIMESTAMP\nNONCE\nBODY

so the same key can sign from a browser wallet or from ledgerctl. The server
accepts each signed request once; resending it within the clock-skew window is
rejected with 401. Queries are public and unsigned.

# Endpoints

	POST /api/v1/researchers              register the caller
	POST /api/v1/submissions              record a genome submission
	POST /api/v1/validators               upsert a validator (owner)
	POST /api/v1/snapshots                export a snapshot (owner)
	GET  /api/v1/researchers/{principal}
	GET  /api/v1/submissions/{genome_id}
	GET  /api/v1/validators/{principal}
	GET  /api/v1/validators
	GET  /api/v1/status
	GET  /api/v1/events?from=&limit=

Successful responses carry "ok": true. Rejected ledger operations return
ErrorResponse with the numeric code in "err".
*/
package api
