package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/agent"
	"SwapSentinel/internal/config"
	"SwapSentinel/internal/evaluator"
	"SwapSentinel/internal/executor"
	"SwapSentinel/internal/httpclient"
	"SwapSentinel/internal/ledger"
	"SwapSentinel/internal/model"
	"SwapSentinel/internal/notifier"
	"SwapSentinel/internal/observability"
	"SwapSentinel/internal/oracle"
	"SwapSentinel/internal/payout"
	"SwapSentinel/internal/protocol"
	"SwapSentinel/internal/quote"
	"SwapSentinel/internal/recorder"
	"SwapSentinel/internal/reserve"
	"SwapSentinel/internal/scheduler"
	"SwapSentinel/internal/solana"
	"SwapSentinel/internal/wallet"
)

// components is the assembled process.
type components struct {
	agent    *agent.Agent
	sched    *scheduler.Scheduler
	metrics  *observability.Metrics
	telegram *notifier.TelegramNotifier
	notifier notifier.Notifier
	recorder recorder.Recorder
}

func (c *components) Close() {
	c.sched.Stop()
	c.notifier.Close()
	if err := c.recorder.Close(); err != nil {
		zap.L().Warn("close recorder", zap.Error(err))
	}
}

func build(ctx context.Context, cfg *config.Config) (*components, error) {
	logger := zap.L().With(zap.String("component", "wire"))
	reserveUnit := cfg.ReserveAsset()

	rpcOpts := []solana.ClientOption{solana.WithTimeout(cfg.Timeouts.RPC)}
	if cfg.Proxy != "" {
		rpcOpts = append(rpcOpts, solana.WithHTTPClient(httpclient.New(cfg.Timeouts.RPC, cfg.Proxy)))
	}
	rpc := solana.NewClient(cfg.Solana.RPCURL, rpcOpts...)

	var keypair *solana.Keypair
	owner := cfg.Solana.WalletAddress
	if cfg.Solana.PrivateKey != "" {
		kp, err := solana.KeypairFromBase58(cfg.Solana.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("load keypair: %w", err)
		}
		keypair = kp
		owner = kp.PublicKey().String()
	}

	var confirmer executor.Confirmer
	if cfg.Solana.WSURL != "" {
		confirmer = solana.NewWSConfirmer(cfg.Solana.WSURL)
	}

	prices := oracle.NewCoinGecko(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Proxy, cfg.Timeouts.Oracle)
	jup := quote.NewJupiter(cfg.Jupiter.BaseURL, cfg.Jupiter.APIKey, cfg.Proxy, cfg.Evaluator.SlippageBps, cfg.Timeouts.Quote)
	exec, err := executor.New(jup, rpc, confirmer, keypair, reserveUnit, executor.Options{
		ConfirmTimeout: cfg.Timeouts.Confirm,
		DryRun:         cfg.Agent.DryRun,
	})
	if err != nil {
		return nil, err
	}
	w := wallet.New(rpc, owner, reserveUnit, cfg.Units)

	book, err := ledger.New(decimal.NewFromFloat(cfg.Ledger.PayoutShare), decimal.NewFromFloat(cfg.Ledger.PayoutThresholdUSD))
	if err != nil {
		return nil, err
	}
	rail := payout.NewBlockonomics(cfg.Blockonomics.BaseURL, cfg.Blockonomics.APIKey, cfg.Proxy, cfg.Timeouts.Payment)
	dispatcher, err := payout.NewDispatcher(rail, destinations(cfg.Payout.Destinations), payout.Options{
		FeeBuffer:        decimal.NewFromFloat(cfg.Payout.FeeBufferUSD),
		CarryForwardDust: cfg.Payout.CarryForwardDust,
		CallTimeout:      cfg.Timeouts.Payment,
	})
	if err != nil {
		return nil, err
	}

	var runner agent.Protocol
	if cfg.Protocol.PlanFile != "" {
		protoPayer, err := payout.NewDispatcher(rail, destinations(cfg.Protocol.Destinations), payout.Options{
			CallTimeout: cfg.Timeouts.Payment,
		})
		if err != nil {
			return nil, fmt.Errorf("protocol destinations: %w", err)
		}
		runner = protocol.NewRunner(cfg.Protocol.PlanFile, cfg.Protocol.LogFile, cfg.Protocol.SniperWallet, exec, protoPayer)
	}

	monitor := reserve.NewMonitor(w, prices, jup, exec, reserveUnit, reserve.Policy{
		Threshold:    decimal.NewFromFloat(cfg.Reserve.Threshold),
		TopUpAmount:  decimal.NewFromFloat(cfg.Reserve.TopUpAmount),
		MinSwapValue: decimal.NewFromFloat(cfg.Reserve.MinSwapValueUSD),
	})
	eval, err := evaluator.New(prices, jup, exec, book, dispatcher, reserveUnit, cfg.CatalogUnits(), evaluator.Params{
		InputAmount:    decimal.NewFromFloat(cfg.Evaluator.InputAmount),
		MinProfit:      decimal.NewFromFloat(cfg.Evaluator.MinProfitUSD),
		MaxPriceImpact: decimal.NewFromFloat(cfg.Evaluator.MaxPriceImpact),
	})
	if err != nil {
		return nil, err
	}

	rec, err := openRecorder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var notifiers notifier.Multi
	var tg *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tg = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notifiers = append(notifiers, tg)
	}
	if cfg.NSQ.Address != "" {
		n, err := notifier.NewNsq(cfg.NSQ.Address, cfg.NSQ.Topic)
		if err != nil {
			notifiers.Close()
			_ = rec.Close()
			return nil, fmt.Errorf("nsq producer: %w", err)
		}
		notifiers = append(notifiers, n)
	}

	metrics := observability.NewMetrics()
	a, err := agent.New(agent.Deps{
		Evaluator: eval,
		Monitor:   monitor,
		Ledger:    book,
		Settler:   dispatcher,
		Protocol:  runner,
		Recorder:  rec,
		Notifier:  notifiers,
		Metrics:   metrics,
	}, agent.Options{
		QueueSize: cfg.Agent.QueueSize,
		DryRun:    cfg.Agent.DryRun,
		Wallet:    owner,
	})
	if err != nil {
		notifiers.Close()
		_ = rec.Close()
		return nil, err
	}

	sched := scheduler.NewScheduler(a)
	specs := scheduler.Specs{
		Evaluate:  cfg.Schedule.EvaluateCron,
		Replenish: cfg.Schedule.ReplenishCron,
	}
	if runner != nil {
		specs.Protocol = cfg.Schedule.ProtocolCron
	}
	if err := sched.RegisterAll(specs); err != nil {
		notifiers.Close()
		_ = rec.Close()
		return nil, err
	}
	a.Attach(sched)

	logger.Info("agent assembled",
		zap.String("wallet", owner),
		zap.String("reserve", reserveUnit.Symbol),
		zap.Int("catalog", len(cfg.Evaluator.Catalog)),
		zap.Bool("dry_run", cfg.Agent.DryRun),
		zap.Bool("protocol", runner != nil),
		zap.Int("notifiers", len(notifiers)),
		zap.String("recorder", cfg.Database.Driver))

	return &components{
		agent:    a,
		sched:    sched,
		metrics:  metrics,
		telegram: tg,
		notifier: notifiers,
		recorder: rec,
	}, nil
}

func openRecorder(ctx context.Context, cfg *config.Config) (recorder.Recorder, error) {
	switch cfg.Database.Driver {
	case "postgres":
		r, err := recorder.NewPostgresRecorder(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres recorder: %w", err)
		}
		return r, nil
	case "sqlite":
		r, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			zap.L().Warn("sqlite recorder unavailable, history disabled", zap.Error(err))
			return recorder.NewNoopRecorder(), nil
		}
		return r, nil
	case "none":
		return recorder.NewNoopRecorder(), nil
	}
	return nil, errors.New("unknown database driver " + cfg.Database.Driver)
}

func destinations(in []config.DestinationConfig) []model.Destination {
	out := make([]model.Destination, 0, len(in))
	for _, d := range in {
		out = append(out, model.Destination{ID: d.ID, Address: d.Address, Share: decimal.NewFromFloat(d.Share)})
	}
	return out
}
