package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SwapSentinel/internal/agent"
	"SwapSentinel/internal/config"
	"SwapSentinel/internal/control"
	"SwapSentinel/internal/logging"
)

// setup loads .env, the config file and the logger. The returned func flushes logs.
func setup(c *cli.Context) (*config.Config, func(), error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, nil, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	_, flush, err := logging.Setup(logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, flush, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the agent with its schedules and control server",
		Action: func(c *cli.Context) error {
			cfg, flush, err := setup(c)
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comp, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer comp.Close()

			srv, err := control.NewServer(control.ServerConfig{
				Addr:    cfg.HTTP.Listen,
				Agent:   comp.agent,
				Metrics: comp.metrics.Handler(),
			})
			if err != nil {
				return err
			}

			if cfg.Agent.AutoStart {
				comp.agent.Start()
			}

			group, gctx := errgroup.WithContext(ctx)
			group.Go(func() error { return comp.agent.Run(gctx) })
			group.Go(func() error { return srv.Start(gctx) })
			if comp.telegram != nil {
				group.Go(func() error {
					comp.telegram.StartPolling(gctx, comp.agent.HandleCommand)
					return nil
				})
			}

			zap.L().Info("swap sentinel running",
				zap.String("listen", cfg.HTTP.Listen),
				zap.Bool("auto_start", cfg.Agent.AutoStart))
			err = group.Wait()
			comp.agent.Stop()
			zap.L().Info("swap sentinel stopped")
			return err
		},
	}
}

func protocolCommand() *cli.Command {
	return &cli.Command{
		Name:  "protocol",
		Usage: "run this month's distribution protocol once and exit",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Minute},
		},
		Action: func(c *cli.Context) error {
			cfg, flush, err := setup(c)
			if err != nil {
				return err
			}
			defer flush()
			if cfg.Protocol.PlanFile == "" {
				return agent.ErrProtocolDisabled
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			comp, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer comp.Close()

			workerCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- comp.agent.Run(workerCtx) }()
			defer func() {
				cancel()
				<-done
			}()

			subCtx, subCancel := context.WithTimeout(ctx, c.Duration("timeout"))
			defer subCancel()
			res, err := comp.agent.Submit(subCtx, agent.JobProtocol)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if res.Protocol != nil {
				if err := enc.Encode(res.Protocol); err != nil {
					return err
				}
			}
			return res.Err
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "validate the configuration and print the resolved settings",
		Action: func(c *cli.Context) error {
			cfg, flush, err := setup(c)
			if err != nil {
				return err
			}
			defer flush()

			catalog := cfg.CatalogUnits()
			symbols := make([]string, 0, len(catalog))
			for _, u := range catalog {
				symbols = append(symbols, u.Symbol)
			}
			zap.L().Info("configuration valid",
				zap.String("reserve", cfg.ReserveUnit),
				zap.Strings("catalog", symbols),
				zap.Float64("input_amount", cfg.Evaluator.InputAmount),
				zap.Float64("min_profit_usd", cfg.Evaluator.MinProfitUSD),
				zap.Float64("payout_threshold_usd", cfg.Ledger.PayoutThresholdUSD),
				zap.Int("payout_destinations", len(cfg.Payout.Destinations)),
				zap.Bool("protocol", cfg.Protocol.PlanFile != ""),
				zap.Bool("dry_run", cfg.Agent.DryRun),
				zap.String("database", cfg.Database.Driver))
			return nil
		},
	}
}
