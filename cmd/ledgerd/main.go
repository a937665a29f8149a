package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/ruteri/vaccine-ledger/cmd/flags"
	"github.com/ruteri/vaccine-ledger/common"
	"github.com/ruteri/vaccine-ledger/httpserver"
	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/ruteri/vaccine-ledger/ledger"
	"github.com/ruteri/vaccine-ledger/metrics"
	"github.com/ruteri/vaccine-ledger/oracle"
	"github.com/ruteri/vaccine-ledger/statedb"
	"github.com/ruteri/vaccine-ledger/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	// Flags read their EnvVars after .env has been applied.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	app := &cli.App{
		Name:    "ledgerd",
		Usage:   "Serve the vaccine research ledger API",
		Version: common.Version,
		Flags:   append(append([]cli.Flag{}, flags.LedgerFlags...), flags.CommonFlags...),
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	owner, err := flags.ParsePrincipal(cCtx, flags.OwnerFlag.Name)
	if err != nil {
		return err
	}
	threshold, err := flags.ParseAmount(cCtx, flags.AdmissionThresholdFlag.Name)
	if err != nil {
		return err
	}

	balances, err := setupOracle(cCtx, logger)
	if err != nil {
		return err
	}

	store, err := setupStore(cCtx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var snapshots interfaces.StorageBackend
	if locations := cCtx.StringSlice(flags.SnapshotStorageFlag.Name); len(locations) > 0 {
		snapshots, err = setupSnapshotStorage(locations, logger)
		if err != nil {
			return err
		}
	}
	passphrase := cCtx.String(flags.SnapshotPassphraseFlag.Name)

	if raw := cCtx.String(flags.RestoreSnapshotFlag.Name); raw != "" {
		if snapshots == nil {
			return errors.New("--restore-snapshot requires --snapshot-storage")
		}
		id, err := interfaces.NewContentIDFromHex(raw)
		if err != nil {
			return fmt.Errorf("--restore-snapshot: %w", err)
		}
		if _, err := ledger.RestoreSnapshot(cCtx.Context, store, snapshots, id, passphrase, logger); err != nil {
			logger.Error("Failed to restore snapshot", "err", err, "contentID", raw)
			return err
		}
	}

	cfg := flags.ConfigureServer(cCtx, logger)
	metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
	if err != nil {
		return err
	}

	opts := []ledger.Option{ledger.WithObserver(metricsSrv.Ledger)}
	if snapshots != nil {
		opts = append(opts, ledger.WithSnapshotStorage(snapshots, passphrase))
	}

	network, err := ledger.NewNetwork(ledger.Config{Owner: owner, AdmissionThreshold: threshold}, store, balances, logger, opts...)
	if err != nil {
		logger.Error("Failed to open ledger", "err", err)
		return err
	}
	logger.Info("Ledger ready",
		"owner", owner,
		"admissionThreshold", threshold.String(),
		"snapshots", snapshots != nil)

	server, err := httpserver.New(cfg, httpserver.NewHandler(network, logger, 0), metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

func setupOracle(cCtx *cli.Context, logger *slog.Logger) (interfaces.BalanceOracle, error) {
	var balances interfaces.BalanceOracle

	switch {
	case cCtx.String(flags.RpcAddrFlag.Name) != "":
		rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
		logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
		client, err := ethclient.DialContext(cCtx.Context, rpcAddress)
		if err != nil {
			logger.Error("Failed to dial RPC", "err", err)
			return nil, err
		}
		balances, err = oracle.NewERC20Oracle(client, logger)
		if err != nil {
			return nil, err
		}

	case cCtx.String(flags.StaticBalancesFlag.Name) != "":
		path := cCtx.String(flags.StaticBalancesFlag.Name)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open static balances: %w", err)
		}
		defer f.Close()

		static, err := oracle.LoadStaticOracle(f)
		if err != nil {
			return nil, err
		}
		logger.Warn("Using static token balances", "file", path)
		balances = static

	default:
		return nil, fmt.Errorf("one of --%s or --%s is required", flags.RpcAddrFlag.Name, flags.StaticBalancesFlag.Name)
	}

	accepted, err := flags.ParsePrincipals(cCtx, flags.AcceptedTokensFlag.Name)
	if err != nil {
		return nil, err
	}
	if len(accepted) > 0 {
		logger.Info("Restricting balance queries to accepted tokens", "count", len(accepted))
		balances = oracle.NewAllowlistOracle(balances, accepted)
	}
	return balances, nil
}

func setupStore(cCtx *cli.Context, logger *slog.Logger) (interfaces.StateStore, error) {
	dir := cCtx.String(flags.StateDirFlag.Name)
	if dir == "" {
		logger.Warn("No --state-dir given, ledger state will not survive a restart")
		return statedb.NewMemoryStore(), nil
	}

	store, err := statedb.NewLevelStore(dir, logger)
	if err != nil {
		logger.Error("Failed to open state store", "err", err, "dir", dir)
		return nil, err
	}
	return store, nil
}

func setupSnapshotStorage(uris []string, logger *slog.Logger) (interfaces.StorageBackend, error) {
	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", flags.SnapshotStorageFlag.Name, err)
		}
		locations = append(locations, location)
	}

	backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, err
	}
	if !backend.Available(context.Background()) {
		logger.Warn("Snapshot storage is not reachable yet", "location", backend.LocationURI())
	}
	return backend, nil
}
