// Package supervisor implements the Tournament Supervisor from spec.md
// §4.5: startup wiring, a 100ms deadline watchdog, SPRT-driven early
// stopping, a periodic progress report, and shutdown sequencing.
// Signal handling and graceful-then-forced shutdown follow the pattern
// in
// _examples/r3e-network-service_layer/infrastructure/service/runner.go
// (signal.Notify + context timeout + last-resort exit).
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/r3e-network/gomocup-cli/internal/board"
	"github.com/r3e-network/gomocup-cli/internal/clock"
	"github.com/r3e-network/gomocup-cli/internal/config"
	"github.com/r3e-network/gomocup-cli/internal/game"
	"github.com/r3e-network/gomocup-cli/internal/jobqueue"
	"github.com/r3e-network/gomocup-cli/internal/metrics"
	"github.com/r3e-network/gomocup-cli/internal/obslog"
	"github.com/r3e-network/gomocup-cli/internal/opening"
	"github.com/r3e-network/gomocup-cli/internal/sprt"
	"github.com/r3e-network/gomocup-cli/internal/worker"
	"github.com/r3e-network/gomocup-cli/internal/writer"
)

// Closer is implemented by every output writer the Supervisor owns.
type Closer interface {
	Close() error
}

// Options bundles everything needed to run one tournament.
type Options struct {
	Cfg      *config.TournamentConfig
	Queue    *jobqueue.Queue
	Openings opening.Source
	Engines  []worker.EngineConfig
	Writers  []writer.TranscriptWriter
	Closers  []Closer
	Log      *obslog.Logger
}

// sprtSink forwards every finished game to the configured output
// writers and, when SPRT is enabled, feeds its WLD into the running
// log-likelihood ratio, stopping the queue at either Wald boundary
// (spec.md §4.5).
type sprtSink struct {
	inner    *writer.TranscriptSink
	queue    *jobqueue.Queue
	sprtTest *sprt.Test
	metrics  *metrics.Registry
	log      *obslog.Logger
}

func (s *sprtSink) Push(idx int, t worker.Transcript) {
	s.inner.Push(idx, t)
	s.metrics.GamesCompleted.Inc()
	if s.sprtTest == nil {
		return
	}
	s.sprtTest.Update(t.WLD)
	s.metrics.SPRTLLR.Set(s.sprtTest.LLR())
	if d := s.sprtTest.Decision(); d != "" {
		s.log.WithField("decision", d).WithField("llr", s.sprtTest.LLR()).Info("SPRT boundary crossed; stopping early")
		s.queue.Stop()
	}
}

// Supervisor owns the Workers, the watchdog, SPRT, and shutdown.
type Supervisor struct {
	cfg     *config.TournamentConfig
	queue   *jobqueue.Queue
	workers []*worker.Worker
	closers []Closer
	log     *obslog.Logger

	metrics   *metrics.Registry
	cronSched *cron.Cron

	httpServer *http.Server
}

// New wires a Supervisor from Options, constructing one Worker per
// configured concurrency slot.
func New(opts Options) *Supervisor {
	variant := mustParseVariant(opts.Cfg.Rule)
	rule := board.NewRule(variant)
	adj := game.Adjudication{
		ResignCount:    opts.Cfg.Adj.ResignCount,
		ResignScore:    opts.Cfg.Adj.ResignScore,
		DrawCount:      opts.Cfg.Adj.DrawCount,
		DrawScore:      opts.Cfg.Adj.DrawScore,
		ForceDrawAfter: opts.Cfg.Adj.ForceDrawAfter,
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var sp *sprt.Test
	if opts.Cfg.SPRT != nil {
		sp = sprt.New(sprt.Params{
			Elo0:  opts.Cfg.SPRT.Elo0,
			Elo1:  opts.Cfg.SPRT.Elo1,
			Alpha: opts.Cfg.SPRT.Alpha,
			Beta:  opts.Cfg.SPRT.Beta,
		})
	}

	sink := &sprtSink{
		inner:    writer.NewTranscriptSink(opts.Writers...),
		queue:    opts.Queue,
		sprtTest: sp,
		metrics:  m,
		log:      opts.Log,
	}

	workers := make([]*worker.Worker, opts.Cfg.Concurrency)
	for i := range workers {
		workers[i] = worker.New(worker.Options{
			ID:        i,
			Queue:     opts.Queue,
			Openings:  opts.Openings,
			Writers:   sink,
			Engines:   opts.Engines,
			BoardSize:  opts.Cfg.BoardSize,
			Rule:       rule,
			RuleCode:   variant.RuleCode(),
			Adj:        adj,
			FatalError: opts.Cfg.FatalError,
			Log:        opts.Log,
		})
	}

	s := &Supervisor{
		cfg:     opts.Cfg,
		queue:   opts.Queue,
		workers: workers,
		closers: opts.Closers,
		log:     opts.Log,
		metrics: m,
	}

	if opts.Cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		s.httpServer = &http.Server{Addr: opts.Cfg.MetricsAddr, Handler: mux}
	}

	return s
}

func mustParseVariant(s string) board.Variant {
	v, err := board.ParseVariant(s)
	if err != nil {
		return board.Freestyle
	}
	return v
}

// Run starts the Workers, the watchdog, the optional metrics server and
// cron progress report, blocks until the tournament completes or is
// interrupted, and then shuts everything down. It returns an exit code
// per spec.md §6 (0 = normal completion, non-zero = fatal error).
func (s *Supervisor) Run(ctx context.Context) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.httpServer != nil {
		go func() {
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.WithField("component", "metrics").WithError(err).Error("metrics server stopped")
			}
		}()
	}

	var wg sync.WaitGroup
	for _, w := range s.workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}

	s.cronSched = cron.New()
	_, _ = s.cronSched.AddFunc("@every 30s", s.reportProgress)
	s.cronSched.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	watchdogDone := make(chan struct{})
	go s.watchdog(ctx, watchdogDone)

	fatal := false
	done := make(chan struct{})
	go func() {
		for {
			if s.queue.Done() {
				close(done)
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	}()

	select {
	case <-done:
	case <-sigCh:
		s.log.Info("received interrupt, shutting down")
		s.queue.Stop()
	case <-watchdogDone:
		fatal = true
	}

	shutdownDone := make(chan struct{})
	go func() {
		s.queue.Stop()
		wg.Wait()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
	case <-time.After(30 * time.Second):
		s.log.Error("shutdown stalled past 30s grace; exiting immediately")
		os.Exit(1)
	case <-sigCh:
		s.log.Error("second interrupt received; exiting immediately")
		os.Exit(1)
	}

	s.cronSched.Stop()
	if s.httpServer != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.httpServer.Shutdown(shutCtx)
		shutCancel()
	}

	if err := s.closeWriters(); err != nil {
		s.log.WithError(err).Error("error closing writers")
		fatal = true
	}
	if s.queue.IsFatal() {
		s.log.Error("-fatalError promoted an engine-level error to a fatal tournament stop")
		fatal = true
	}

	fmt.Print(s.queue.PrintResults(s.cfg.Games))

	if fatal {
		return 1
	}
	return 0
}

// watchdog polls every Worker's DeadlineRegisters every 100ms per
// spec.md §4.5, escalating SIGTERM then SIGKILL against an overdue
// engine before declaring it permanently unresponsive (the §9 open
// question resolved in favor of escalation).
func (s *Supervisor) watchdog(ctx context.Context, fatalCh chan<- struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	fired := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, w := range s.workers {
				for _, reg := range w.Registers {
					snap := reg.Read()
					if !snap.Set {
						continue
					}
					now := clock.NowMS()
					if now < snap.WallDeadline {
						continue
					}
					key := fmt.Sprintf("%s-%d", snap.EngineName, snap.Started)
					if !fired[key] {
						fired[key] = true
						reg.MarkCallbackFired()
						s.log.WithField("engine", snap.EngineName).Warn("deadline exceeded; force-terminating")
						go killWorkerPID(snap.PID)
						continue
					}
					if now-snap.WallDeadline > 3000 {
						s.log.WithField("engine", snap.EngineName).Error("engine unresponsive past escalation window; fatal")
						fatalCh <- struct{}{}
						return
					}
				}
			}
		}
	}
}

func (s *Supervisor) reportProgress() {
	snap := s.queue.Snapshot()
	s.log.WithField("component", "progress").Infof("progress: %d/%d complete", snap.Completed, snap.Total)
	s.metrics.QueueDepth.Set(float64(snap.Total - snap.Completed))
}

func (s *Supervisor) closeWriters() error {
	var merr *multierror.Error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
