/*
Package clients provides a Go client for the vaccine research ledger HTTP API.

LedgerClient signs every mutating request with the caller's secp256k1 key and
translates error responses back into ledger errors, so callers can match
rejections with errors.Is against the interfaces error sentinels:

	client := clients.NewLedgerClient("http://localhost:8080", key)
	_, err := client.RegisterResearcher(ctx, "Institut Pasteur", token)
	if errors.Is(err, interfaces.ErrInsufficientFunds) {
		...
	}

CreateSignedRequest and SignRequest are exported for tools that build their
own requests.
*/
package clients
