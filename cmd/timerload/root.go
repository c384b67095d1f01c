package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// program holds state shared by the subcommands.
type program struct {
	logLevel string
	log      *zap.Logger
	// runner replaces runLoad when set.
	runner func(context.Context, *zap.Logger, config) error
}

func newRootCommand(p *program) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "timerload",
		Short:        "Load generator for metrics timers.",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if p.log != nil {
				return nil
			}
			log, err := newLogger(p.logLevel)
			if err != nil {
				return err
			}
			p.log = log
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&p.logLevel, "log-level", "info",
		"Log level: debug, info, warn or error")

	cmd.AddCommand(newRunCommand(p))
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}

func (p *program) sync() {
	if p.log != nil {
		_ = p.log.Sync()
	}
}

func (p *program) runLoad(ctx context.Context, cfg config) error {
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.runner != nil {
		return p.runner(ctx, p.log, cfg)
	}
	return runLoad(ctx, p.log, cfg)
}
