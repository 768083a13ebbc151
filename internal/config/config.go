// Package config loads runtime knobs the way the teacher's config.go does:
// a flat struct hydrated from the process environment, except here the
// source is a viper-backed file+env layer since spec.md's key table is a
// nested YAML shape (global.*, SYMBOLS.<sym>.*, websocket.*) rather than the
// teacher's handful of top-level env vars.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
)

// Global holds the session-wide knobs under the `global.*` key table.
type Global struct {
	MinProfitTarget        money.Money
	MaxDayLoss             money.Money
	ChargePerOrder         money.Money
	AllocationPct          float64
	SlippageBufferPct      float64
	MaxLotsPerTrade        int
	DecisionInterval       time.Duration
	TakeProfitPct          float64
	StopLossPct            float64
	TrailPct               float64
	BreakevenThresholdPct  float64
	RupeeStep              money.Money
	EmergencyFloorRupees   money.Money
}

// Websocket holds the `websocket.*` resilience knobs.
type Websocket struct {
	HeartbeatInterval    time.Duration
	MaxReconnectAttempts int
	BaseReconnectDelay   time.Duration
	MaxReconnectDelay    time.Duration
}

// Symbol holds one `SYMBOLS.<sym>.*` block.
type Symbol struct {
	Name           string
	IndexSID       string
	SegIdx         string
	SegOpt         string
	StrikeStep     float64
	LotSize        int
	QtyMultiplier  float64
	ExpiryWeekday  time.Weekday
}

// Paper holds the `paper.*` block, used only in simulated mode.
type Paper struct {
	StartingBalance money.Money
}

// Env holds credentials and the panic flag, read straight from the
// process environment the way the teacher's env.go does, never from the
// config file.
type Env struct {
	ClientID    string
	AccessToken string
	Panic       bool
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Global    Global
	Websocket Websocket
	Symbols   []Symbol
	Paper     Paper
	Env       Env
}

// Load reads path (if non-empty) plus SCALPER_-prefixed env overrides via
// viper, and the broker credential/panic env vars directly, returning a
// fully populated Config with spec.md §6's defaults applied.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCALPER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Global: Global{
			MinProfitTarget:       money.FromFloat(v.GetFloat64("global.min_profit_target")),
			MaxDayLoss:            money.FromFloat(v.GetFloat64("global.max_day_loss")),
			ChargePerOrder:        money.FromFloat(v.GetFloat64("global.charge_per_order")),
			AllocationPct:         v.GetFloat64("global.allocation_pct"),
			SlippageBufferPct:     v.GetFloat64("global.slippage_buffer_pct"),
			MaxLotsPerTrade:       v.GetInt("global.max_lots_per_trade"),
			DecisionInterval:      v.GetDuration("global.decision_interval"),
			TakeProfitPct:         v.GetFloat64("global.tp_pct"),
			StopLossPct:           v.GetFloat64("global.sl_pct"),
			TrailPct:              v.GetFloat64("global.trail_pct"),
			BreakevenThresholdPct: v.GetFloat64("global.breakeven_threshold_pct"),
			RupeeStep:             money.FromFloat(v.GetFloat64("global.rupee_step")),
			EmergencyFloorRupees:  money.FromFloat(v.GetFloat64("global.emergency_floor_rupees")),
		},
		Websocket: Websocket{
			HeartbeatInterval:    v.GetDuration("websocket.heartbeat_interval"),
			MaxReconnectAttempts: v.GetInt("websocket.max_reconnect_attempts"),
			BaseReconnectDelay:   v.GetDuration("websocket.base_reconnect_delay"),
			MaxReconnectDelay:    v.GetDuration("websocket.max_reconnect_delay"),
		},
		Paper: Paper{
			StartingBalance: money.FromFloat(v.GetFloat64("paper.starting_balance")),
		},
		Env: Env{
			ClientID:    os.Getenv("CLIENT_ID"),
			AccessToken: os.Getenv("ACCESS_TOKEN"),
			Panic:       os.Getenv("PANIC") == "1" || strings.EqualFold(os.Getenv("PANIC"), "true"),
		},
	}

	symbolsKey := v.GetStringMap("SYMBOLS")
	for name := range symbolsKey {
		prefix := "SYMBOLS." + name + "."
		cfg.Symbols = append(cfg.Symbols, Symbol{
			Name:          strings.ToUpper(name), // viper lowercases map keys
			IndexSID:      v.GetString(prefix + "idx_sid"),
			SegIdx:        v.GetString(prefix + "seg_idx"),
			SegOpt:        v.GetString(prefix + "seg_opt"),
			StrikeStep:    v.GetFloat64(prefix + "strike_step"),
			LotSize:       v.GetInt(prefix + "lot_size"),
			QtyMultiplier: v.GetFloat64(prefix + "qty_multiplier"),
			ExpiryWeekday: time.Weekday(v.GetInt(prefix + "expiry_wday")),
		})
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("global.min_profit_target", 0.0)
	v.SetDefault("global.max_day_loss", 5000.0)
	v.SetDefault("global.charge_per_order", 20.0)
	v.SetDefault("global.allocation_pct", 0.3)
	v.SetDefault("global.slippage_buffer_pct", 0.02)
	v.SetDefault("global.max_lots_per_trade", 10)
	v.SetDefault("global.decision_interval", "10s")
	v.SetDefault("global.tp_pct", 0.3)
	v.SetDefault("global.sl_pct", 0.15)
	v.SetDefault("global.trail_pct", 0.1)
	v.SetDefault("global.breakeven_threshold_pct", 0.1)
	v.SetDefault("global.rupee_step", 0.0)
	v.SetDefault("global.emergency_floor_rupees", 0.0)

	v.SetDefault("websocket.heartbeat_interval", "10s")
	v.SetDefault("websocket.max_reconnect_attempts", 10)
	v.SetDefault("websocket.base_reconnect_delay", "500ms")
	v.SetDefault("websocket.max_reconnect_delay", "30s")

	v.SetDefault("paper.starting_balance", 100000.0)
}
