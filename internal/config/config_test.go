package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
global:
  min_profit_target: 1000
  max_day_loss: 4000
  charge_per_order: 20
  allocation_pct: 0.25
  slippage_buffer_pct: 0.02
  max_lots_per_trade: 5
  decision_interval: 10s
  tp_pct: 0.3
  sl_pct: 0.15
  trail_pct: 0.1
  breakeven_threshold_pct: 0.1
  rupee_step: 0.5
  emergency_floor_rupees: 200

websocket:
  heartbeat_interval: 10s
  max_reconnect_attempts: 8
  base_reconnect_delay: 500ms
  max_reconnect_delay: 30s

paper:
  starting_balance: 150000

SYMBOLS:
  NIFTY:
    idx_sid: "13"
    seg_idx: IDX_I
    seg_opt: NSE_FNO
    strike_step: 50
    lot_size: 75
    qty_multiplier: 1
    expiry_wday: 4
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesGlobalAndSymbols(t *testing.T) {
	path := writeSample(t)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Global.MaxLotsPerTrade != 5 {
		t.Fatalf("max_lots_per_trade = %d, want 5", cfg.Global.MaxLotsPerTrade)
	}
	if cfg.Websocket.MaxReconnectAttempts != 8 {
		t.Fatalf("max_reconnect_attempts = %d, want 8", cfg.Websocket.MaxReconnectAttempts)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0].Name != "NIFTY" {
		t.Fatalf("expected one NIFTY symbol block, got %+v", cfg.Symbols)
	}
	if cfg.Symbols[0].LotSize != 75 {
		t.Fatalf("lot_size = %d, want 75", cfg.Symbols[0].LotSize)
	}
}

func TestLoadAppliesDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Global.DecisionInterval.Seconds() != 10 {
		t.Fatalf("decision_interval default = %s, want 10s", cfg.Global.DecisionInterval)
	}
	if cfg.Websocket.MaxReconnectAttempts != 10 {
		t.Fatalf("default max_reconnect_attempts = %d, want 10", cfg.Websocket.MaxReconnectAttempts)
	}
}

func TestEnvPanicFlag(t *testing.T) {
	t.Setenv("PANIC", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Env.Panic {
		t.Fatal("expected Env.Panic=true when PANIC=true")
	}
}
