package main

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ygrebnov/metrics/v2"
	"github.com/ygrebnov/metrics/v2/promexport"
)

var errSynthetic = errors.New("synthetic work failure")

type runArgs struct {
	configPath string
	flags      config
}

func newRunCommand(p *program) *cobra.Command {
	arguments := runArgs{flags: defaultConfig()}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Times synthetic work items from concurrent workers and reports timer snapshots.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := arguments.resolve(cmd)
			if err != nil {
				return err
			}
			return p.runLoad(cmd.Context(), cfg)
		},
	}

	f := &arguments.flags
	cmd.Flags().StringVar(&arguments.configPath, "config", "",
		"YAML file with run settings; flags given explicitly take precedence")
	cmd.Flags().IntVar(&f.Workers, "workers", f.Workers,
		"Number of concurrent workers")
	cmd.Flags().DurationVar(&f.For, "for", f.For,
		"How long to run; 0 runs until interrupted")
	cmd.Flags().DurationVar(&f.Interval, "interval", f.Interval,
		"How often to log a snapshot")
	cmd.Flags().DurationVar(&f.Work, "work", f.Work,
		"Mean duration of one work item")
	cmd.Flags().Float64Var(&f.ErrorRatio, "error-ratio", f.ErrorRatio,
		"Share of work items that fail")
	cmd.Flags().Uint64Var(&f.Seed, "seed", f.Seed,
		"Seed for work durations and failures; 0 picks a random seed")
	cmd.Flags().Var(unitValue{&f.Timer.DurationUnit}, "duration-unit",
		"Unit durations are reported in (ns, us, ms, s, m, h, d)")
	cmd.Flags().Var(unitValue{&f.Timer.RateUnit}, "rate-unit",
		"Unit rates are reported per (ns, us, ms, s, m, h, d)")
	cmd.Flags().StringVar(&f.MetricsAddr, "metrics-addr", f.MetricsAddr,
		"Serve Prometheus metrics on this address, e.g. :9100")

	return cmd
}

// resolve loads the config file and applies the flags that were set.
func (a *runArgs) resolve(cmd *cobra.Command) (config, error) {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return cfg, err
	}
	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Workers = a.flags.Workers
	}
	if changed("for") {
		cfg.For = a.flags.For
	}
	if changed("interval") {
		cfg.Interval = a.flags.Interval
	}
	if changed("work") {
		cfg.Work = a.flags.Work
	}
	if changed("error-ratio") {
		cfg.ErrorRatio = a.flags.ErrorRatio
	}
	if changed("seed") {
		cfg.Seed = a.flags.Seed
	}
	if changed("duration-unit") {
		cfg.Timer.DurationUnit = a.flags.Timer.DurationUnit
	}
	if changed("rate-unit") {
		cfg.Timer.RateUnit = a.flags.Timer.RateUnit
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = a.flags.MetricsAddr
	}
	return cfg, cfg.validate()
}

var reportQuantiles = []float64{0.5, 0.95, 0.99}

func runLoad(ctx context.Context, log *zap.Logger, cfg config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.For > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.For)
		defer cancel()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	reg := metrics.NewRegistry(metrics.WithRegistryLogger(log.Sugar()))
	timer := reg.Timer("work",
		metrics.WithDescription("Duration of synthetic work items."),
		metrics.WithDurationUnit(cfg.Timer.DurationUnit),
		metrics.WithRateUnit(cfg.Timer.RateUnit),
	).(*metrics.Timer)
	failures := reg.Meter("work_failures",
		metrics.WithEventType("failures"),
		metrics.WithRateUnit(cfg.Timer.RateUnit),
	)

	log.Info("Starting load",
		zap.Int("workers", cfg.Workers),
		zap.Duration("for", cfg.For),
		zap.Duration("work", cfg.Work),
		zap.Float64("error_ratio", cfg.ErrorRatio),
		zap.Uint64("seed", seed),
		zap.Stringer("duration_unit", cfg.Timer.DurationUnit),
		zap.Stringer("rate_unit", cfg.Timer.RateUnit),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Workers; i++ {
		rnd := rand.New(rand.NewPCG(seed, uint64(i)))
		g.Go(func() error {
			for ctx.Err() == nil {
				timeWorkItem(ctx, timer, failures, rnd, cfg)
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				log.Info("Timer snapshot", snapshotFields(timer.Snapshot(reportQuantiles...))...)
			}
		}
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promexport.Handler(reg, promexport.WithNamespace("timerload"), promexport.WithLogger(log.Sugar())),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("Serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serve metrics")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Final timer snapshot", snapshotFields(timer.Snapshot(reportQuantiles...))...)
	return nil
}

// timeWorkItem runs one work item on timer. An item cut short by ctx is not
// recorded, so shutdown does not add truncated durations.
func timeWorkItem(ctx context.Context, timer *metrics.Timer, failures metrics.EventMarker, rnd *rand.Rand, cfg config) {
	sw := timer.Start()
	err := doWork(ctx, rnd, cfg.Work, cfg.ErrorRatio)
	if err != nil && errors.Is(err, ctx.Err()) {
		return
	}
	sw.Stop()
	if errors.Is(err, errSynthetic) {
		failures.Mark()
	}
}

// doWork sleeps for a random duration around mean and fails with the given
// probability. It returns early with the context's error when ctx is done.
func doWork(ctx context.Context, rnd *rand.Rand, mean time.Duration, errorRatio float64) error {
	d := time.Duration(rnd.ExpFloat64() * float64(mean))
	fail := rnd.Float64() < errorRatio

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	if fail {
		return errSynthetic
	}
	return nil
}

func snapshotFields(s metrics.TimerSnapshot) []zap.Field {
	fields := []zap.Field{
		zap.Int64("count", s.Count),
		zap.Float64("min", s.Min),
		zap.Float64("max", s.Max),
		zap.Float64("mean", s.Mean),
		zap.Float64("stddev", s.StdDev),
	}
	for i, q := range s.Quantiles {
		fields = append(fields, zap.Float64(quantileKey(q), s.Percentiles[i]))
	}
	return append(fields,
		zap.Float64("mean_rate", s.MeanRate),
		zap.Float64("rate_1m", s.OneMinuteRate),
		zap.Float64("rate_5m", s.FiveMinuteRate),
		zap.Float64("rate_15m", s.FifteenMinuteRate),
		zap.Stringer("duration_unit", s.DurationUnit),
		zap.Stringer("rate_unit", s.RateUnit),
	)
}

func quantileKey(q float64) string {
	switch q {
	case 0.5:
		return "p50"
	case 0.95:
		return "p95"
	case 0.99:
		return "p99"
	default:
		return "p" + strconv.FormatFloat(q*100, 'f', -1, 64)
	}
}
