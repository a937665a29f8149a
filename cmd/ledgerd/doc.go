// Command ledgerd serves the vaccine research ledger over HTTP.
//
// Ledger state lives in LevelDB under --state-dir (or in memory without it).
// Researcher admission reads token balances from an Ethereum node at
// --rpc-addr, or from a fixed JSON table given with --static-balances for
// development. Every flag can also be set through its environment variable,
// and a .env file in the working directory is loaded first.
//
// Example:
//
//	ledgerd \
//	  --owner 0xDe0B295669a9FD93d5F28D9Ec85E40f4cb697BAe \
//	  --admission-threshold 1000 \
//	  --rpc-addr https://rpc.example.org \
//	  --accepted-token 0x6B175474E89094C44Da98b954EedeAC495271d0F \
//	  --state-dir /var/lib/ledger \
//	  --snapshot-storage file:///var/lib/ledger/snapshots \
//	  --snapshot-storage s3://ledger-snapshots/prod?region=eu-west-1
//
// The owner principal is written to the state store on first start; starting
// again with a different --owner fails.
package main
