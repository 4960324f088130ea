package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"

	"SwapSentinel/internal/model"
)

// DefaultUnits is the unit registry used when the config file lists none.
var DefaultUnits = []model.Unit{
	{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9, PriceID: "solana"},
	{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapT8G4wEGGkZwyTDt1v", Decimals: 6, PriceID: "usd-coin", Stable: true},
	{Symbol: "USDT", Mint: "Es9vMFrzaCERUjBz2X4T5UoD7gwo8pWxSyh5MZgibY4M", Decimals: 6, PriceID: "tether", Stable: true},
	{Symbol: "BONK", Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5, PriceID: "bonk"},
	{Symbol: "WIF", Mint: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm", Decimals: 6, PriceID: "dogwifcoin"},
	{Symbol: "JUP", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6, PriceID: "jupiter-exchange-solana"},
	{Symbol: "JTO", Mint: "jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL", Decimals: 9, PriceID: "jito-governance-token"},
	{Symbol: "PYTH", Mint: "HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3", Decimals: 6, PriceID: "pyth-network"},
	{Symbol: "HNT", Mint: "hntyVPpSVuqZZh1mxZ9oYrRCJ5Fgho77Wqz1ukJkT67", Decimals: 8, PriceID: "helium"},
	{Symbol: "POPCAT", Mint: "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", Decimals: 9, PriceID: "popcat"},
}

func (c *Config) applyDefaults() {
	if c.Agent.QueueSize <= 0 {
		c.Agent.QueueSize = 8
	}
	if c.Schedule.EvaluateCron == "" {
		c.Schedule.EvaluateCron = "@every 30s"
	}
	if c.Schedule.ReplenishCron == "" {
		c.Schedule.ReplenishCron = "@every 5m"
	}
	if c.Schedule.ProtocolCron == "" {
		c.Schedule.ProtocolCron = "0 0 9 1 * *"
	}
	if len(c.Units) == 0 {
		c.Units = append([]model.Unit(nil), DefaultUnits...)
	}
	if c.ReserveUnit == "" {
		c.ReserveUnit = "SOL"
	}
	if len(c.Evaluator.Catalog) == 0 {
		for _, u := range c.Units {
			if u.Symbol != c.ReserveUnit {
				c.Evaluator.Catalog = append(c.Evaluator.Catalog, u.Symbol)
			}
		}
	}
	if c.Evaluator.InputAmount == 0 {
		c.Evaluator.InputAmount = 0.1
	}
	if c.Evaluator.MinProfitUSD == 0 {
		c.Evaluator.MinProfitUSD = 0.2
	}
	if c.Evaluator.SlippageBps == 0 {
		c.Evaluator.SlippageBps = 100
	}
	if c.Reserve.Threshold == 0 {
		c.Reserve.Threshold = 0.5
	}
	if c.Reserve.TopUpAmount == 0 {
		c.Reserve.TopUpAmount = 0.2
	}
	if c.Reserve.MinSwapValueUSD == 0 {
		c.Reserve.MinSwapValueUSD = 1
	}
	if c.Ledger.PayoutShare == 0 {
		c.Ledger.PayoutShare = 0.6
	}
	if c.Ledger.PayoutThresholdUSD == 0 {
		c.Ledger.PayoutThresholdUSD = 50
	}
	if c.Protocol.LogFile == "" {
		c.Protocol.LogFile = "data/protocol_log.json"
	}
	if c.Solana.RPCURL == "" {
		c.Solana.RPCURL = "https://api.mainnet-beta.solana.com"
	}
	if c.Jupiter.BaseURL == "" {
		c.Jupiter.BaseURL = "https://quote-api.jup.ag/v6"
	}
	if c.Oracle.BaseURL == "" {
		c.Oracle.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.Blockonomics.BaseURL == "" {
		c.Blockonomics.BaseURL = "https://www.blockonomics.co"
	}
	if c.Timeouts.Oracle == 0 {
		c.Timeouts.Oracle = 10 * time.Second
	}
	if c.Timeouts.Quote == 0 {
		c.Timeouts.Quote = 20 * time.Second
	}
	if c.Timeouts.RPC == 0 {
		c.Timeouts.RPC = 15 * time.Second
	}
	if c.Timeouts.Confirm == 0 {
		c.Timeouts.Confirm = 60 * time.Second
	}
	if c.Timeouts.Payment == 0 {
		c.Timeouts.Payment = 15 * time.Second
	}
	if c.NSQ.Topic == "" {
		c.NSQ.Topic = "swap_sentinel.events"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/swap_sentinel.db"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":3000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}
