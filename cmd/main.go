package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/typesense-client/config"
	"github.com/angeloszaimis/typesense-client/internal/healthcheck"
	"github.com/angeloszaimis/typesense-client/internal/httpserver"
	"github.com/angeloszaimis/typesense-client/internal/metrics"
	"github.com/angeloszaimis/typesense-client/internal/tracing"
	"github.com/angeloszaimis/typesense-client/pkg/logger"
	"github.com/angeloszaimis/typesense-client/pkg/typesense"
)

const usage = `Usage: typesense-client [flags] <command> [args]

Commands:
  health                            check whether the cluster can serve requests
  watch                             probe every node until interrupted
  debug                             print the server debug information
  collections                       list collections
  export <collection>               print every document as JSON lines
  import <collection> <file.jsonl>  import documents from a JSON lines file
  search <collection> <q> [query_by] search a collection

Flags:
`

const metricsBufferSize = 1000

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	action, err := importAction(flags)
	if err != nil {
		fmt.Fprintf(stderr, "invalid --%s: %v\n", flagAction, err)
		return 2
	}

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	log := logger.FromConfig(cfg, stderr)

	shutdownTracing, err := tracing.Setup(ctx, cfg)
	if err != nil {
		log.Error("Failed to set up tracing", slog.Any("err", err))
		return 1
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("Failed to flush traces", slog.Any("err", err))
		}
	}()

	collector := metrics.NewCollector(metricsBufferSize, log)
	collector.Start(ctx)

	client, err := typesense.NewClient(cfg,
		typesense.WithLogger(log),
		typesense.WithCollector(collector),
	)
	if err != nil {
		log.Error("Failed to create client", slog.Any("err", err))
		return 1
	}
	defer client.Close()

	d := client.Dispatcher()
	checker := healthcheck.NewChecker(d, d.Pool(), cfg.ConnectionTimeoutDuration(), log)

	a := &app{
		client:  client,
		checker: checker,
		cfg:     cfg,
		log:     log,
		out:     stdout,
		action:  action,
	}

	if err := serve(ctx, cfg, collector, checker, log, func(ctx context.Context) error {
		return a.dispatch(ctx, flags.Args())
	}); err != nil {
		log.Error("Command failed", slog.String("command", flags.Arg(0)), slog.Any("err", err))
		return 1
	}

	return 0
}

// serve runs command, exposing metrics on the configured address while it
// runs. Without an address only the command runs.
func serve(ctx context.Context, cfg *config.Config, collector *metrics.Collector, checker *healthcheck.Checker, log *slog.Logger, command func(context.Context) error) error {
	if cfg.Metrics.Address == "" {
		return command(ctx)
	}

	srv, err := httpserver.New(cfg.Metrics.Address, setupRouter(collector, checker), log)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	var eg errgroup.Group
	eg.Go(func() error {
		return srv.Run(serverCtx)
	})

	cmdErr := command(ctx)
	stopServer()

	if err := eg.Wait(); err != nil {
		log.Error("Metrics server failed", slog.Any("err", err))
	}

	return cmdErr
}

const flagAction = "action"

func newFlagSet(stderr io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet("typesense-client", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)

	flags.StringP(config.FlagConfig, "c", "", "path to the config file (default ./config/config.yaml or ./config.yaml)")
	flags.String(config.FlagMetricsAddr, "", "serve /metrics, /metrics/snapshot and /nodes on this address")
	flags.String(config.FlagLogLevel, "", "log level: debug, info, warn or error")
	flags.String(flagAction, "create", "import: create, upsert, update or emplace")

	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	return flags
}

func importAction(flags *pflag.FlagSet) (string, error) {
	action, err := flags.GetString(flagAction)
	if err != nil {
		return "", err
	}

	err = validation.Validate(action,
		validation.Required,
		validation.In("create", "upsert", "update", "emplace"),
	)
	return action, err
}
