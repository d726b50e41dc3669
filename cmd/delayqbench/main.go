package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uber-go/tally/v4"

	delayqueue "github.com/timzifer/delay_queue"
	"github.com/timzifer/delay_queue/config"
	"github.com/timzifer/delay_queue/internal/bench"
	"github.com/timzifer/delay_queue/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "delayqbench",
		Short: "delayqbench - load driver for the delay queue",
		Long: `delayqbench runs concurrent producers and consumers against a delay queue
and verifies that every job is delivered exactly once and never early.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	defaults := config.Default()
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to configuration file")
	flags.Int("capacity", defaults.Queue.Capacity, "Queue capacity, 0 for unbounded")
	flags.Duration("offer-timeout", defaults.Queue.OfferTimeout, "How long a producer waits for a free slot before retrying")
	flags.Duration("poll-timeout", defaults.Queue.PollTimeout, "How long a consumer waits for a ready job")
	flags.Int("producers", defaults.Bench.Producers, "Number of producer goroutines")
	flags.Int("consumers", defaults.Bench.Consumers, "Number of consumer goroutines")
	flags.Int("items", defaults.Bench.ItemsPerProducer, "Jobs inserted by each producer")
	flags.Duration("max-delay", defaults.Bench.MaxDelay, "Upper bound of the random job delay")
	flags.String("log-level", defaults.Logging.Level, "Log level")
	flags.String("log-format", defaults.Logging.Format, "Log format, text or json")

	return rootCmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.StandardLogger()
	if err := cfg.Logging.Apply(logger); err != nil {
		return err
	}

	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:   cfg.Metrics.Prefix,
		Reporter: telemetry.NewLogReporter(logger, log.InfoLevel),
	}, cfg.Metrics.ReportInterval)
	defer closer.Close()

	q := delayqueue.New[bench.Job](
		cfg.QueueCapacity(),
		delayqueue.WithMetrics(scope),
		delayqueue.WithLogger(logger),
	)

	report, err := bench.Run(ctx, q, bench.Options{
		Producers:        cfg.Bench.Producers,
		Consumers:        cfg.Bench.Consumers,
		ItemsPerProducer: cfg.Bench.ItemsPerProducer,
		MaxDelay:         cfg.Bench.MaxDelay,
		OfferTimeout:     cfg.Queue.OfferTimeout,
		PollTimeout:      cfg.Queue.PollTimeout,
	}, logger)
	logger.WithFields(report.Fields()).Info("bench run finished")
	if err != nil {
		return err
	}
	return report.Err()
}
