// Package supervisor implements the Supervisor (C16): it owns the decision
// clock and fans control into SessionGuard, EntryManager, and ExitManager,
// the same ticker-and-select shape the teacher's runLive loop in main.go
// uses, generalized to a multi-stage pipeline and a graceful-shutdown path
// that flushes state and writes a session report.
package supervisor

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shubhamtaywade82/dhan-scalper/internal/balance"
	"github.com/shubhamtaywade82/dhan-scalper/internal/entry"
	"github.com/shubhamtaywade82/dhan-scalper/internal/exit"
	"github.com/shubhamtaywade82/dhan-scalper/internal/metrics"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/notify"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/report"
	"github.com/shubhamtaywade82/dhan-scalper/internal/session"
	"github.com/shubhamtaywade82/dhan-scalper/internal/stream"
)

// Config wires every collaborator the decision tick fans out to.
type Config struct {
	DecisionInterval time.Duration
	Guard            *session.Guard
	Entry            *entry.Manager
	EntrySymbols     []entry.SymbolConfig
	Exit             *exit.Manager
	Signals          exit.SignalLookup
	ExitParams       exit.ParamsLookup
	Positions        *position.Tracker
	Balance          balance.Provider
	WS               *stream.Manager
	Notifier         notify.Notifier
	ReportOut        io.Writer
	Report           *report.Builder
	Log              *logrus.Logger
}

// Supervisor owns the decision-tick timer and the shutdown sequence.
type Supervisor struct {
	cfg Config
	log *logrus.Entry
}

// New constructs a Supervisor from a fully wired Config.
func New(cfg Config) *Supervisor {
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NoOp{}
	}
	return &Supervisor{cfg: cfg, log: log.WithField("component", "supervisor")}
}

// Run blocks, firing a decision tick on cfg.DecisionInterval until ctx is
// canceled, then performs the graceful-shutdown sequence.
func (s *Supervisor) Run(ctx context.Context) error {
	interval := s.cfg.DecisionInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("supervisor started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("supervisor shutting down")
			return s.shutdown(context.Background())
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Supervisor) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("decision tick panicked; continuing with the next tick")
		}
	}()

	state := s.cfg.Guard.Check()
	metrics.SetSessionState([]string{"ok", "market_closed", "day_loss_limit", "feed_stale", "panic"}, string(state))

	if state != session.StateOK {
		if errs := s.cfg.Guard.ForceExitAll(ctx, money.Zero); len(errs) > 0 {
			for _, err := range errs {
				s.log.WithError(err).Warn("force-exit failed during guard trip")
			}
		}
		if state == session.StatePanic {
			s.notify(ctx, "panic", "session guard raised panic; positions force-exited")
		}
		return
	}

	s.cfg.Entry.Tick(ctx, s.cfg.EntrySymbols)
	s.cfg.Exit.Tick(ctx, true, s.cfg.Signals, s.cfg.ExitParams)

	open := s.cfg.Positions.ListOpen()
	if total, err := s.cfg.Balance.RealizedPnL(ctx); err == nil {
		for _, p := range open {
			total = total.Add(p.UnrealizedPnL)
		}
		metrics.SessionPnL.Set(total.Float64())
	}
	metrics.OpenPositions.Set(float64(len(open)))
}

func (s *Supervisor) notify(ctx context.Context, kind, msg string) {
	if s.cfg.Notifier == nil {
		return
	}
	if err := s.cfg.Notifier.Notify(ctx, notify.Event{Kind: kind, Message: msg, At: time.Now()}); err != nil {
		s.log.WithError(err).Warn("notify failed")
	}
}

// shutdown flushes open positions, closes the stream manager, and writes
// the final session report.
func (s *Supervisor) shutdown(ctx context.Context) error {
	if errs := s.cfg.Guard.ForceExitAll(ctx, money.Zero); len(errs) > 0 {
		for _, err := range errs {
			s.log.WithError(err).Warn("flush exit failed")
		}
	}
	if s.cfg.WS != nil {
		s.cfg.WS.Stop()
	}
	if s.cfg.Report != nil && s.cfg.ReportOut != nil && s.cfg.Balance != nil {
		final, _ := s.cfg.Balance.Available(ctx)
		rec := s.cfg.Report.Build(time.Now(), final)
		if err := report.WriteCSV(s.cfg.ReportOut, rec); err != nil {
			s.log.WithError(err).Warn("write session report failed")
			return err
		}
	}
	s.log.Info("supervisor shutdown complete")
	return nil
}
