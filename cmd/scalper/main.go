// Command scalper boots the intraday options scalping engine.
//
// Boot sequence, mirroring the teacher's main.go shape:
//  1. envfile.Load + config.Load           - env/file configuration
//  2. wire Money/TickCache/DurableStore/BalanceProvider/PositionTracker
//  3. wire InstrumentResolver/OptionPicker/QuantitySizer/IndicatorEngine
//  4. wire Broker (paper or live) and AtomicTrade
//  5. wire WSManager, EntryManager, ExitManager, SessionGuard
//  6. start the Prometheus /healthz + /metrics server
//  7. run Supervisor until SIGINT/SIGTERM, then shut down gracefully
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/shubhamtaywade82/dhan-scalper/internal/balance"
	"github.com/shubhamtaywade82/dhan-scalper/internal/broker"
	"github.com/shubhamtaywade82/dhan-scalper/internal/config"
	"github.com/shubhamtaywade82/dhan-scalper/internal/entry"
	"github.com/shubhamtaywade82/dhan-scalper/internal/envfile"
	"github.com/shubhamtaywade82/dhan-scalper/internal/exit"
	"github.com/shubhamtaywade82/dhan-scalper/internal/indicator"
	"github.com/shubhamtaywade82/dhan-scalper/internal/instrument"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/notify"
	"github.com/shubhamtaywade82/dhan-scalper/internal/option"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/report"
	"github.com/shubhamtaywade82/dhan-scalper/internal/series"
	"github.com/shubhamtaywade82/dhan-scalper/internal/session"
	"github.com/shubhamtaywade82/dhan-scalper/internal/sizing"
	"github.com/shubhamtaywade82/dhan-scalper/internal/store"
	"github.com/shubhamtaywade82/dhan-scalper/internal/stream"
	"github.com/shubhamtaywade82/dhan-scalper/internal/supervisor"
	"github.com/shubhamtaywade82/dhan-scalper/internal/ticks"
	"github.com/shubhamtaywade82/dhan-scalper/internal/trade"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

func main() {
	var (
		configPath   string
		instruments  string
		mode         string
		port         int
		webhookURL   string
		redisAddr    string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the global/websocket/SYMBOLS config file")
	flag.StringVar(&instruments, "instruments", "instruments.csv", "Path to the instrument master CSV")
	flag.StringVar(&mode, "mode", "paper", "paper or live")
	flag.IntVar(&port, "port", 8080, "Port for /healthz and /metrics")
	flag.StringVar(&webhookURL, "webhook", "", "Optional notification webhook URL")
	flag.StringVar(&redisAddr, "redis", "", "Optional redis address; empty uses the in-memory store")
	flag.Parse()

	envfile.Load("CLIENT_ID", "ACCESS_TOKEN", "PANIC")

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	runtimeMode := types.ModePaper
	if mode == "live" {
		runtimeMode = types.ModeLive
	}

	resolver, err := instrument.LoadCSV(instruments)
	if err != nil {
		log.WithError(err).Fatal("load instrument master")
	}

	var st store.Store = store.NewMemory()
	if redisAddr != "" {
		st = store.Dial(redisAddr, "", 0)
	}
	ns := store.Namespace("scalper")
	sessionID := fmt.Sprintf("sess-%d", time.Now().Unix())

	tickBackend := &store.SnapshottingStore{NS: ns, Store: st, Ctx: func() context.Context { return context.Background() }}
	tickCache := ticks.New(tickBackend, 250*time.Millisecond)

	var bal balance.Provider = balance.NewSimulated(cfg.Paper.StartingBalance)
	positions := position.New()
	executor := trade.New(bal, positions, st, ns, sessionID, runtimeMode)

	picker := option.New(resolver, runtimeMode == types.ModePaper)
	sizer := sizing.New()
	engine := indicator.New()
	seriesStore := series.New()

	var brk broker.Broker = broker.NewPaper(tickCache)
	if runtimeMode == types.ModeLive {
		log.Warn("live broker client not configured; falling back to paper fills")
	}

	wsCfg := stream.Config{
		BaseDelay:            cfg.Websocket.BaseReconnectDelay,
		MaxDelay:             cfg.Websocket.MaxReconnectDelay,
		MaxReconnectAttempts: cfg.Websocket.MaxReconnectAttempts,
		HeartbeatInterval:    cfg.Websocket.HeartbeatInterval,
		DedupWindow:          time.Second,
		URL:                  os.Getenv("WS_URL"),
	}
	sink := func(t types.Tick) {
		tickCache.Put(t)
		positions.UpdateUnrealized(tickCache)
	}
	wsManager := stream.New(stream.GorillaDialer{}, decodeTickFrame, sink, wsCfg, log)

	var symbolConfigs []entry.SymbolConfig
	for _, sym := range cfg.Symbols {
		symbolConfigs = append(symbolConfigs, entry.SymbolConfig{
			Symbol:           sym.Name,
			Segment:          sym.SegOpt,
			StrikeStep:       sym.StrikeStep,
			ExpiryWeekday:    sym.ExpiryWeekday,
			IndicatorPrimary: indicator.Params{Composite: indicator.CompositeEnhanced, EMAFast: 9, EMASlow: 21, RSIPeriod: 14, RSIBullAbove: 55, RSIBearBelow: 45, ADXPeriod: 14, ADXMin: 20, SupertrendN: 10, SupertrendM: 3},
			UseSecondary:     false,
			Sizing:           sizing.Params{AllocationPct: cfg.Global.AllocationPct, SlippageBufferPct: cfg.Global.SlippageBufferPct, MaxLotsPerTrade: cfg.Global.MaxLotsPerTrade, LotSize: sym.LotSize, QtyMultiplierCap: int(sym.QtyMultiplier)},
			Fee:              cfg.Global.ChargePerOrder,
			StopLossPct:      cfg.Global.StopLossPct,
			TakeProfitPct:    cfg.Global.TakeProfitPct,
			MaxStalePremium:  5 * time.Second,
			MaxPerDirection:  cfg.Global.MaxLotsPerTrade,
		})
		wsManager.AddBaseline(sym.SegIdx, sym.IndexSID)
	}

	entryMgr := entry.New(seriesStore, tickCache, bal, engine, picker, sizer, executor, positions, wsManager, brk, runtimeMode, 5, log)
	exitMgr := exit.New(positions, executor, brk, log)

	exitParams := func(string) exit.Params {
		return exit.Params{
			EmergencyFloor:        cfg.Global.EmergencyFloorRupees,
			BreakevenThresholdPct: cfg.Global.BreakevenThresholdPct,
			FeePerLot:             cfg.Global.ChargePerOrder,
			TrailPct:              cfg.Global.TrailPct,
			RupeeStep:             cfg.Global.RupeeStep,
			SellFee:               cfg.Global.ChargePerOrder,
		}
	}
	signalLookup := func(string) (types.Signal, bool) { return types.Signal{}, false }

	window := session.Window{Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute, Grace: 5 * time.Minute}
	guard := session.New(window, cfg.Global.MaxDayLoss, 60*time.Second, tickCache, pnlSource{bal, positions}, positions, executor)
	guard.SetPanic(cfg.Env.Panic)

	var notifier notify.Notifier = notify.NoOp{}
	if webhookURL != "" {
		notifier = notify.NewWebhook(webhookURL, 5*time.Second)
	}

	reportPath := fmt.Sprintf("session-%s-report.csv", sessionID)
	reportFile, err := os.Create(reportPath)
	if err != nil {
		log.WithError(err).Fatal("create session report file")
	}
	defer reportFile.Close()
	rb := report.NewBuilder(sessionID, time.Now(), cfg.Paper.StartingBalance)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	httpSrv := &http.Server{Addr: ":" + strconv.Itoa(port), Handler: mux}
	go func() {
		log.Infof("serving healthz+metrics on :%d", port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go wsManager.Run(ctx)

	sup := supervisor.New(supervisor.Config{
		DecisionInterval: cfg.Global.DecisionInterval,
		Guard:            guard,
		Entry:            entryMgr,
		EntrySymbols:     symbolConfigs,
		Exit:             exitMgr,
		Signals:          signalLookup,
		ExitParams:       exitParams,
		Positions:        positions,
		Balance:          bal,
		WS:               wsManager,
		Notifier:         notifier,
		ReportOut:        reportFile,
		Report:           rb,
		Log:              log,
	})

	if err := sup.Run(ctx); err != nil {
		log.WithError(err).Error("supervisor run")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

type pnlSource struct {
	bal       balance.Provider
	positions *position.Tracker
}

// Total is the session P&L: realized P&L plus the unrealized P&L of every
// open position.
func (p pnlSource) Total() money.Money {
	total, err := p.bal.RealizedPnL(context.Background())
	if err != nil {
		return money.Zero
	}
	for _, pos := range p.positions.ListOpen() {
		total = total.Add(pos.UnrealizedPnL)
	}
	return total
}

// decodeTickFrame parses the exchange feed's JSON tick frame. Unknown or
// non-tick frames (acks, heartbeats) return ok=false.
func decodeTickFrame(frame []byte) (types.Tick, bool) {
	var raw struct {
		Segment    string  `json:"segment"`
		SecurityID string  `json:"security_id"`
		LTP        float64 `json:"ltp"`
		ATP        float64 `json:"atp"`
		DayHigh    float64 `json:"day_high"`
		DayLow     float64 `json:"day_low"`
		Volume     int64   `json:"volume"`
		ServerTime int64   `json:"server_time"`
	}
	if err := json.Unmarshal(frame, &raw); err != nil || raw.SecurityID == "" {
		return types.Tick{}, false
	}
	return types.Tick{
		Segment:    raw.Segment,
		SecurityID: raw.SecurityID,
		LTP:        money.FromFloat(raw.LTP),
		ATP:        money.FromFloat(raw.ATP),
		DayHigh:    money.FromFloat(raw.DayHigh),
		DayLow:     money.FromFloat(raw.DayLow),
		Volume:     raw.Volume,
		ServerTime: time.Unix(raw.ServerTime, 0),
		ReceivedAt: time.Now(),
	}, true
}
