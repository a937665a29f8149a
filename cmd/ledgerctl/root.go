package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/vaccine-ledger/api/clients"
	"github.com/ruteri/vaccine-ledger/common"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	server     string
	privateKey string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Vaccine research ledger CLI",
		Long:          "A command-line client for registering researchers, submitting genome data and managing validators.",
		Version:       common.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("LEDGER_SERVER", "http://127.0.0.1:8080"), "ledger API base URL")
	root.PersistentFlags().StringVar(&opts.privateKey, "private-key", os.Getenv("LEDGER_PRIVATE_KEY"), "hex secp256k1 private key used to sign requests")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newKeygenCmd(),
		newRegisterCmd(opts),
		newSubmitCmd(opts),
		newAddValidatorCmd(opts),
		newSnapshotCmd(opts),
		newGetCmd(opts),
		newStatusCmd(opts),
		newEventsCmd(opts),
	)
	return root
}

// client builds a LedgerClient. Commands that mutate state pass signed=true.
func (o *rootOptions) client(signed bool) (*clients.LedgerClient, error) {
	var key *ecdsa.PrivateKey
	if o.privateKey != "" {
		var err error
		key, err = crypto.HexToECDSA(strings.TrimPrefix(o.privateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("--private-key: %w", err)
		}
	} else if signed {
		return nil, errors.New("this command needs --private-key or LEDGER_PRIVATE_KEY")
	}
	return clients.NewLedgerClient(o.server, key, o.timeout), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
