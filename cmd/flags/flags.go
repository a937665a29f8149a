package flags

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/vaccine-ledger/api"
	"github.com/ruteri/vaccine-ledger/common"
	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
		MaxClockSkew:             cCtx.Duration(MaxClockSkewFlag.Name),
	}
}

// ParsePrincipal reads a required 0x-prefixed address flag.
func ParsePrincipal(cCtx *cli.Context, name string) (interfaces.Principal, error) {
	principal, err := interfaces.NewPrincipalFromHex(cCtx.String(name))
	if err != nil {
		return interfaces.Principal{}, fmt.Errorf("--%s: %w", name, err)
	}
	return principal, nil
}

// ParsePrincipals reads a repeatable address flag.
func ParsePrincipals(cCtx *cli.Context, name string) ([]interfaces.Principal, error) {
	values := cCtx.StringSlice(name)
	principals := make([]interfaces.Principal, 0, len(values))
	for _, value := range values {
		principal, err := interfaces.NewPrincipalFromHex(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		principals = append(principals, principal)
	}
	return principals, nil
}

// ParseAmount reads a non-negative base-10 integer flag of arbitrary size.
func ParseAmount(cCtx *cli.Context, name string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(cCtx.String(name), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("--%s: %q is not a non-negative integer", name, cCtx.String(name))
	}
	return amount, nil
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"LEDGER_LISTEN_ADDR"},
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Usage:   "Ethereum JSON-RPC endpoint used to read token balances; empty uses --static-balances",
	EnvVars: []string{"LEDGER_RPC_ADDR"},
}

var OwnerFlag = &cli.StringFlag{
	Name:     "owner",
	Required: true,
	Usage:    "deployment owner principal (0x-prefixed address), fixed for the lifetime of the state dir",
	EnvVars:  []string{"LEDGER_OWNER"},
}

var AdmissionThresholdFlag = &cli.StringFlag{
	Name:    "admission-threshold",
	Value:   "1000",
	Usage:   "minimum token balance, in base units, required to register as a researcher",
	EnvVars: []string{"LEDGER_ADMISSION_THRESHOLD"},
}

var AcceptedTokensFlag = &cli.StringSliceFlag{
	Name:    "accepted-token",
	Usage:   "token principal the balance oracle may query (repeatable); empty accepts any token",
	EnvVars: []string{"LEDGER_ACCEPTED_TOKENS"},
}

var StaticBalancesFlag = &cli.StringFlag{
	Name:    "static-balances",
	Usage:   "JSON file with fixed balances {token: {holder: amount}}, used when --rpc-addr is empty",
	EnvVars: []string{"LEDGER_STATIC_BALANCES"},
}

var StateDirFlag = &cli.StringFlag{
	Name:    "state-dir",
	Usage:   "LevelDB directory for ledger state; empty keeps state in memory",
	EnvVars: []string{"LEDGER_STATE_DIR"},
}

var SnapshotStorageFlag = &cli.StringSliceFlag{
	Name:    "snapshot-storage",
	Usage:   "snapshot storage location URI (file://, s3://, ipfs://, vault://), repeatable for replication",
	EnvVars: []string{"LEDGER_SNAPSHOT_STORAGE"},
}

var SnapshotPassphraseFlag = &cli.StringFlag{
	Name:    "snapshot-passphrase",
	Usage:   "seal snapshots with this passphrase",
	EnvVars: []string{"LEDGER_SNAPSHOT_PASSPHRASE"},
}

var RestoreSnapshotFlag = &cli.StringFlag{
	Name:    "restore-snapshot",
	Usage:   "content id of a snapshot to load into an empty state store before serving",
	EnvVars: []string{"LEDGER_RESTORE_SNAPSHOT"},
}

var MaxClockSkewFlag = &cli.DurationFlag{
	Name:    "max-clock-skew",
	Value:   api.DefaultMaxClockSkew,
	Usage:   "maximum age of a signed request",
	EnvVars: []string{"LEDGER_MAX_CLOCK_SKEW"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: []string{"LOG_JSON"},
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: []string{"LOG_DEBUG"},
}
var LogUidFlag = &cli.BoolFlag{
	Name:    "log-uid",
	Value:   false,
	Usage:   "generate a uuid and add to all log messages",
	EnvVars: []string{"LOG_UID"},
}
var LogServiceFlag = &cli.StringFlag{
	Name:    "log-service",
	Value:   common.PackageName,
	Usage:   "add 'service' tag to logs",
	EnvVars: []string{"LOG_SERVICE"},
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"LEDGER_METRICS_ADDR"},
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var LedgerFlags = []cli.Flag{
	ListenAddrFlag,
	RpcAddrFlag,
	OwnerFlag,
	AdmissionThresholdFlag,
	AcceptedTokensFlag,
	StaticBalancesFlag,
	StateDirFlag,
	SnapshotStorageFlag,
	SnapshotPassphraseFlag,
	RestoreSnapshotFlag,
	MaxClockSkewFlag,
}
