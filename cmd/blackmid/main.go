package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"black-heatmap/internal/cli"
	"black-heatmap/internal/config"
	"black-heatmap/internal/fixtures"
	"black-heatmap/internal/integration"
	"black-heatmap/internal/logging"
	"black-heatmap/internal/observability"
	"black-heatmap/internal/querystore"
	"black-heatmap/internal/storage"
	"black-heatmap/internal/storage/clickhouse"
	"black-heatmap/internal/storage/oracle"
	"black-heatmap/internal/storage/redshift"
)

func main() {
	// Parse flags
	envFile := flag.String("env-file", ".env", "Environment file with ORACLE_*, REDSHIFT_* and APP_* settings")
	useFixtures := flag.Bool("use-fixtures", false, "Use in-memory demo databases instead of Oracle and the warehouse")
	input := flag.String("input", "", "Blacklist MID workbook (default path for prompts)")
	nonInteractive := flag.Bool("non-interactive", false, "Run the integrated flow once and exit")
	checkpoint := flag.String("checkpoint", "", "Access checkpoint date (YYYY-MM-DD)")
	start := flag.String("start", "", "Trade range start (YYYY-MM-DD HH:MM:SS)")
	end := flag.String("end", "", "Trade range end (YYYY-MM-DD HH:MM:SS)")
	charts := flag.Bool("charts", true, "Render charts in non-interactive mode")
	flag.Parse()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "Received signal %v, shutting down...\n", sig)
		cancel()
	}()

	if err := run(ctx, options{
		envFile:        *envFile,
		useFixtures:    *useFixtures,
		input:          *input,
		nonInteractive: *nonInteractive,
		checkpoint:     *checkpoint,
		start:          *start,
		end:            *end,
		charts:         *charts,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	envFile        string
	useFixtures    bool
	input          string
	nonInteractive bool
	checkpoint     string
	start          string
	end            string
	charts         bool
}

func run(ctx context.Context, o options) error {
	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	oracleCfg, warehouseCfg, appCfg, err := config.Load(boot, o.envFile)
	if err != nil {
		return err
	}

	logger, closer, err := logging.Setup(logging.Options{
		Dir:    appCfg.LogDir,
		Level:  appCfg.LogLevel,
		Format: appCfg.LogFormat,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	metrics := observability.NewMetrics("")
	defer func() {
		if appCfg.MetricsFile == "" {
			return
		}
		if err := metrics.WriteTextfile(appCfg.MetricsFile); err != nil {
			logger.Error().Err(err).Str("path", appCfg.MetricsFile).Msg("write metrics failed")
		}
	}()

	store := querystore.NewDir(appCfg.QueryDir, logger)
	kind := warehouseCfg.QueryKind()

	var oracleConn, warehouseConn storage.Connector
	if o.useFixtures {
		logger.Info().Msg("using in-memory fixtures")
		oracleConn = fixtures.Oracle()
		warehouseConn = fixtures.Warehouse(kind)
		if o.input == "" {
			o.input = filepath.Join(appCfg.OutputDir, "demo_black_mid.xlsx")
			if err := os.MkdirAll(appCfg.OutputDir, 0o755); err != nil {
				return err
			}
			if err := fixtures.WriteWorkbook(o.input, fixtures.MIDs(40)); err != nil {
				return fmt.Errorf("write demo workbook: %w", err)
			}
			logger.Info().Str("path", o.input).Msg("demo MID workbook written")
		}
	} else {
		if err := promptPasswords(&oracleCfg, &warehouseCfg); err != nil {
			return err
		}
		connOpts := storage.Options{Logger: logger, Metrics: metrics, QueryTimeout: appCfg.QueryTimeout}
		oracleConn = oracle.New(oracleCfg, connOpts)
		if kind == config.DriverClickHouse {
			warehouseConn = clickhouse.New(warehouseCfg, connOpts)
		} else {
			warehouseConn = redshift.New(warehouseCfg, connOpts)
		}
	}

	app := cli.New(cli.Options{
		In:            os.Stdin,
		Out:           os.Stdout,
		Config:        appCfg,
		Store:         store,
		Oracle:        oracleConn,
		Warehouse:     warehouseConn,
		WarehouseKind: kind,
		InputPath:     o.input,
		Logger:        logger,
		Metrics:       metrics,
	})

	if o.nonInteractive {
		if o.input == "" {
			return fmt.Errorf("-input is required with -non-interactive")
		}
		_, err := app.RunIntegrated(ctx, integration.Request{
			Path:           o.input,
			Checkpoint:     o.checkpoint,
			Start:          o.start,
			End:            o.end,
			ValidateFormat: true,
		}, o.charts)
		return err
	}

	err = app.Run(ctx)
	logger.Info().Msg("program finished")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// promptPasswords asks for missing database passwords when attached to a terminal.
func promptPasswords(oracleCfg *config.OracleConfig, warehouseCfg *config.RedshiftConfig) error {
	fd := int(os.Stdin.Fd())
	if !cli.IsTerminal(fd) {
		return nil
	}
	if oracleCfg.Password == "" {
		pw, err := cli.ReadPassword(fd, os.Stderr, "Oracle")
		if err != nil {
			return err
		}
		oracleCfg.Password = pw
	}
	if warehouseCfg.Password == "" {
		pw, err := cli.ReadPassword(fd, os.Stderr, "Warehouse")
		if err != nil {
			return err
		}
		warehouseCfg.Password = pw
	}
	return nil
}
