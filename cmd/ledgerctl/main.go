// Command ledgerctl is a client for the vaccine research ledger API.
//
//	ledgerctl keygen
//	ledgerctl --private-key $KEY register "Institut Pasteur" --token 0x6B17...
//	ledgerctl --private-key $KEY submit SARS-CoV-2-001 <sha256-hex> coronavirus --token 0x6B17...
//	ledgerctl --private-key $OWNER_KEY add-validator 0xAb58... 40
//	ledgerctl status
//
// The private key may also be given through LEDGER_PRIVATE_KEY.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
