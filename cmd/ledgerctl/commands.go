package main

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"principal":   crypto.PubkeyToAddress(key.PublicKey).Hex(),
				"private_key": hexutil.Encode(crypto.FromECDSA(key)),
			})
		},
	}
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:     "register <institution>",
		Short:   "Register the signing principal as a researcher",
		Example: `  ledgerctl register "Harvard Medical School" --token 0x6B175474E89094C44Da98b954EedeAC495271d0F`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenPrincipal, err := interfaces.NewPrincipalFromHex(token)
			if err != nil {
				return fmt.Errorf("--token: %w", err)
			}
			client, err := opts.client(true)
			if err != nil {
				return err
			}
			researcher, err := client.RegisterResearcher(cmd.Context(), args[0], tokenPrincipal)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), researcher)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token principal whose balance gates admission")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "submit <genome-id> <data-hash> <genome-type>",
		Short: "Record a genome data submission",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenPrincipal, err := interfaces.NewPrincipalFromHex(token)
			if err != nil {
				return fmt.Errorf("--token: %w", err)
			}
			client, err := opts.client(true)
			if err != nil {
				return err
			}
			submission, err := client.SubmitGenomeData(cmd.Context(), args[0], args[1], args[2], tokenPrincipal)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), submission)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token principal recorded with the submission")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newAddValidatorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-validator <principal> <weight>",
		Short: "Add or reweight a validator (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator, err := interfaces.NewPrincipalFromHex(args[0])
			if err != nil {
				return err
			}
			weight, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid weight %q: %w", args[1], err)
			}
			client, err := opts.client(true)
			if err != nil {
				return err
			}
			v, err := client.AddValidator(cmd.Context(), validator, weight)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Export a ledger snapshot to the server's snapshot storage (owner only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(true)
			if err != nil {
				return err
			}
			receipt, err := client.ExportSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), receipt)
		},
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	get := &cobra.Command{
		Use:   "get",
		Short: "Look up a single record",
	}

	get.AddCommand(
		&cobra.Command{
			Use:   "researcher <principal>",
			Short: "Show a registered researcher",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				principal, err := interfaces.NewPrincipalFromHex(args[0])
				if err != nil {
					return err
				}
				client, err := opts.client(false)
				if err != nil {
					return err
				}
				r, err := client.Researcher(cmd.Context(), principal)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), r)
			},
		},
		&cobra.Command{
			Use:   "submission <genome-id>",
			Short: "Show a genome submission",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := opts.client(false)
				if err != nil {
					return err
				}
				s, err := client.Submission(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			},
		},
		&cobra.Command{
			Use:   "validator [principal]",
			Short: "Show one validator, or the whole directory without an argument",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := opts.client(false)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					all, err := client.Validators(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), all)
				}

				principal, err := interfaces.NewPrincipalFromHex(args[0])
				if err != nil {
					return err
				}
				v, err := client.Validator(cmd.Context(), principal)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), v)
			},
		},
	)
	return get
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger height and record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(false)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		from  uint64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Page through the event journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(false)
			if err != nil {
				return err
			}
			page, err := client.Events(cmd.Context(), from, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 1, "first height to return")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events (server default when 0)")
	return cmd
}
