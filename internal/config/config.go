package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"SwapSentinel/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Agent struct {
		AutoStart bool `yaml:"auto_start"`
		DryRun    bool `yaml:"dry_run"`
		QueueSize int  `yaml:"queue_size"`
	} `yaml:"agent"`
	Schedule struct {
		EvaluateCron  string `yaml:"evaluate_cron"`
		ReplenishCron string `yaml:"replenish_cron"`
		ProtocolCron  string `yaml:"protocol_cron"`
	} `yaml:"schedule"`
	Units       []model.Unit `yaml:"units"`
	ReserveUnit string       `yaml:"reserve_unit"`
	Evaluator   struct {
		Catalog        []string `yaml:"catalog"`
		InputAmount    float64  `yaml:"input_amount"`
		MinProfitUSD   float64  `yaml:"min_profit_usd"`
		MaxPriceImpact float64  `yaml:"max_price_impact"`
		SlippageBps    int      `yaml:"slippage_bps"`
	} `yaml:"evaluator"`
	Reserve struct {
		Threshold       float64 `yaml:"threshold"`
		TopUpAmount     float64 `yaml:"top_up_amount"`
		MinSwapValueUSD float64 `yaml:"min_swap_value_usd"`
	} `yaml:"reserve"`
	Ledger struct {
		PayoutShare        float64 `yaml:"payout_share"`
		PayoutThresholdUSD float64 `yaml:"payout_threshold_usd"`
	} `yaml:"ledger"`
	Payout struct {
		FeeBufferUSD     float64             `yaml:"fee_buffer_usd"`
		CarryForwardDust bool                `yaml:"carry_forward_dust"`
		Destinations     []DestinationConfig `yaml:"destinations"`
	} `yaml:"payout"`
	Protocol struct {
		PlanFile     string              `yaml:"plan_file"`
		LogFile      string              `yaml:"log_file"`
		SniperWallet string              `yaml:"sniper_wallet"`
		Destinations []DestinationConfig `yaml:"destinations"`
	} `yaml:"protocol"`
	Solana struct {
		RPCURL        string `yaml:"rpc_url"`
		WSURL         string `yaml:"ws_url"`
		PrivateKey    string `yaml:"private_key"`
		WalletAddress string `yaml:"wallet_address"` // watch-only address for dry runs without a key
	} `yaml:"solana"`
	Jupiter struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"jupiter"`
	Oracle struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"oracle"`
	Blockonomics struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"blockonomics"`
	Timeouts struct {
		Oracle  time.Duration `yaml:"oracle"`
		Quote   time.Duration `yaml:"quote"`
		RPC     time.Duration `yaml:"rpc"`
		Confirm time.Duration `yaml:"confirm"`
		Payment time.Duration `yaml:"payment"`
	} `yaml:"timeouts"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	NSQ struct {
		Address string `yaml:"address"`
		Topic   string `yaml:"topic"`
	} `yaml:"nsq"`
	Database struct {
		Driver      string `yaml:"driver"` // sqlite | postgres | none
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"database"`
	HTTP struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
		File        string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// DestinationConfig is one payout leg as written in the config file.
type DestinationConfig struct {
	ID      string  `yaml:"id"`
	Address string  `yaml:"address"`
	Share   float64 `yaml:"share"`
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	str := map[string]*string{
		"SOLANA_RPC_URL":            &c.Solana.RPCURL,
		"SOLANA_WS_URL":             &c.Solana.WSURL,
		"SOLANA_PRIVATE_KEY_BASE58": &c.Solana.PrivateKey,
		"SOLANA_WALLET_ADDRESS":     &c.Solana.WalletAddress,
		"JUPITER_API_KEY":           &c.Jupiter.APIKey,
		"JUPITER_BASE_URL":          &c.Jupiter.BaseURL,
		"COINGECKO_API_KEY":         &c.Oracle.APIKey,
		"BLOCKONOMICS_API_KEY":      &c.Blockonomics.APIKey,
		"TELEGRAM_BOT_TOKEN":        &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":          &c.Telegram.ChatID,
		"NSQ_ADDRESS":               &c.NSQ.Address,
		"SQLITE_PATH":               &c.Database.SQLitePath,
		"POSTGRES_DSN":              &c.Database.PostgresDSN,
		"SNIPER_WALLET_ADDRESS":     &c.Protocol.SniperWallet,
		"PROTOCOL_JSON_PATH":        &c.Protocol.PlanFile,
		"PROTOCOL_LOG_PATH":         &c.Protocol.LogFile,
		"HTTPS_PROXY":               &c.Proxy,
		"LOG_LEVEL":                 &c.Log.Level,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		c.HTTP.Listen = ":" + v
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Agent.DryRun = b
		}
	}
	if v := os.Getenv("AUTO_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Agent.AutoStart = b
		}
	}
	if v := os.Getenv("MIN_PROFIT_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Evaluator.MinProfitUSD = f
		}
	}
	if v := os.Getenv("USER_BTC_ADDRESS"); v != "" {
		setDestinationAddress(c.Protocol.Destinations, "user", v)
	}
	if v := os.Getenv("RESERVE_BTC_ADDRESS"); v != "" {
		setDestinationAddress(c.Protocol.Destinations, "reserve", v)
	}
}

func setDestinationAddress(dests []DestinationConfig, id, addr string) {
	for i := range dests {
		if dests[i].ID == id {
			dests[i].Address = addr
		}
	}
}

// Validate checks the configuration. Every failure wraps model.ErrConfigurationInvalid,
// and the agent refuses to start on any of them.
func (c *Config) Validate() error {
	units := c.UnitIndex()
	if len(units) != len(c.Units) {
		return invalid("units contain duplicate symbols")
	}
	for _, u := range c.Units {
		if u.Symbol == "" || u.Mint == "" {
			return invalid("every unit needs symbol and mint")
		}
		if u.Decimals < 0 || u.Decimals > 18 {
			return invalid("unit %s decimals out of range", u.Symbol)
		}
	}
	if _, ok := units[c.ReserveUnit]; !ok {
		return invalid("reserve_unit %q not in units", c.ReserveUnit)
	}
	if len(c.Evaluator.Catalog) == 0 {
		return invalid("evaluator.catalog is empty")
	}
	for _, sym := range c.Evaluator.Catalog {
		if _, ok := units[sym]; !ok {
			return invalid("catalog unit %q not in units", sym)
		}
		if sym == c.ReserveUnit {
			return invalid("catalog must not contain the reserve unit")
		}
	}
	if c.Evaluator.InputAmount <= 0 {
		return invalid("evaluator.input_amount must be positive")
	}
	if c.Evaluator.MinProfitUSD < 0 {
		return invalid("evaluator.min_profit_usd must not be negative")
	}
	if c.Evaluator.MaxPriceImpact < 0 || c.Evaluator.MaxPriceImpact >= 1 {
		return invalid("evaluator.max_price_impact must be in [0,1)")
	}
	if c.Reserve.Threshold <= 0 || c.Reserve.TopUpAmount <= 0 {
		return invalid("reserve.threshold and reserve.top_up_amount must be positive")
	}
	if c.Ledger.PayoutShare <= 0 || c.Ledger.PayoutShare > 1 {
		return invalid("ledger.payout_share must be in (0,1]")
	}
	if c.Ledger.PayoutThresholdUSD <= 0 {
		return invalid("ledger.payout_threshold_usd must be positive")
	}
	if c.Payout.FeeBufferUSD < 0 {
		return invalid("payout.fee_buffer_usd must not be negative")
	}
	if err := validateDestinations("payout", c.Payout.Destinations); err != nil {
		return err
	}
	if c.Protocol.PlanFile != "" {
		if err := validateDestinations("protocol", c.Protocol.Destinations); err != nil {
			return err
		}
		if c.Protocol.SniperWallet == "" {
			return invalid("protocol.sniper_wallet is required when protocol.plan_file is set")
		}
	}
	if c.Solana.RPCURL == "" {
		return invalid("solana.rpc_url is required")
	}
	if !c.Agent.DryRun && c.Solana.PrivateKey == "" {
		return invalid("solana.private_key is required unless agent.dry_run is set")
	}
	if c.Solana.PrivateKey == "" && c.Solana.WalletAddress == "" {
		return invalid("solana.wallet_address is required when no private key is configured")
	}
	switch c.Database.Driver {
	case "sqlite", "none":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return invalid("database.postgres_dsn is required for the postgres driver")
		}
	default:
		return invalid("database.driver %q unknown", c.Database.Driver)
	}
	return nil
}

func validateDestinations(section string, dests []DestinationConfig) error {
	if len(dests) == 0 {
		return invalid("%s.destinations is empty", section)
	}
	sum := 0.0
	seen := make(map[string]bool, len(dests))
	for _, d := range dests {
		if d.ID == "" || d.Address == "" {
			return invalid("%s destination needs id and address", section)
		}
		if seen[d.ID] {
			return invalid("%s destination %q repeated", section, d.ID)
		}
		seen[d.ID] = true
		if d.Share < 0 {
			return invalid("%s destination %q share negative", section, d.ID)
		}
		sum += d.Share
	}
	if sum < 1-1e-9 || sum > 1+1e-9 {
		return invalid("%s destination shares sum to %.6f, want 1.0", section, sum)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), model.ErrConfigurationInvalid)
}

// UnitIndex maps unit symbols to units.
func (c *Config) UnitIndex() map[string]model.Unit {
	idx := make(map[string]model.Unit, len(c.Units))
	for _, u := range c.Units {
		idx[strings.TrimSpace(u.Symbol)] = u
	}
	return idx
}

// ReserveAsset returns the reserve unit.
func (c *Config) ReserveAsset() model.Unit {
	return c.UnitIndex()[c.ReserveUnit]
}

// CatalogUnits returns the evaluator catalog as units, in configured order.
func (c *Config) CatalogUnits() []model.Unit {
	idx := c.UnitIndex()
	out := make([]model.Unit, 0, len(c.Evaluator.Catalog))
	for _, sym := range c.Evaluator.Catalog {
		if u, ok := idx[sym]; ok {
			out = append(out, u)
		}
	}
	return out
}
