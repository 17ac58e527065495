// Package worker implements the Worker component from spec.md §4.2: a
// single goroutine holding two Engine Process Adapters (one per side)
// and one Deadline Register per side, pulling jobs from the Job Queue and driving
// the Game Driver through one match at a time.
//
// Restart-on-crash amortizes startup cost across many games the way
// github.com/R3E-Network/service_layer/infrastructure/marble's Worker
// amortizes a ticker across repeated background runs; here the "tick"
// is job completion rather than a timer.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/r3e-network/gomocup-cli/internal/board"
	"github.com/r3e-network/gomocup-cli/internal/clock"
	"github.com/r3e-network/gomocup-cli/internal/deadline"
	"github.com/r3e-network/gomocup-cli/internal/engineproc"
	"github.com/r3e-network/gomocup-cli/internal/game"
	"github.com/r3e-network/gomocup-cli/internal/jobqueue"
	"github.com/r3e-network/gomocup-cli/internal/obslog"
	"github.com/r3e-network/gomocup-cli/internal/opening"
	"github.com/r3e-network/gomocup-cli/internal/tourerr"
	"golang.org/x/time/rate"
)

func msNowPlus(ms int64) int64 { return clock.NowMS() + ms }

// adapterAsGameEngine adapts *engineproc.Adapter to game.Engine (the
// types already structurally match; this exists purely to keep package
// boundaries explicit at the call site).
func adapterAsGameEngine(a *engineproc.Adapter) game.Engine { return a }

// EngineConfig is what a Worker needs to (re)spawn one side.
type EngineConfig struct {
	Index          int
	Path           string
	DisplayName    string
	ToleranceMS    int64
	TimeoutTurnMS  int64
	TimeoutMatchMS int64
	IncrementMS    int64
	MemoryCapBytes int64
	ExtraOptions   map[string]string
	Debug          bool
}

// Options configures a Worker.
type Options struct {
	ID        int
	Queue     *jobqueue.Queue
	Openings  opening.Source
	Writers   TranscriptSink
	Engines   []EngineConfig // indexed by engine index, same order as TournamentConfig
	BoardSize int
	Rule       board.Rule
	RuleCode   int // Gomocup "INFO rule <code>" bitmask for the active variant
	Adj        game.Adjudication
	FatalError bool // -fatalError: promote any engine-level error to a fatal tournament stop
	Log        *obslog.Logger
}

// TranscriptSink receives a finished game's transcript for the output
// writers (PGN/SGF/message-log/sample). Kept as an interface so the
// Worker does not depend on internal/writer directly.
type TranscriptSink interface {
	Push(idx int, rec Transcript)
}

// Transcript is everything the output writers need about one game.
type Transcript struct {
	Job      jobqueue.Job
	Result   game.Result
	BlackName, WhiteName string
	WLD      int
	Reason   string
}

// loadedEngine pairs a running adapter with the config it was started
// with, so the Worker can tell "same identity, reuse" from "different
// engine, restart" per spec.md §4.2.
type loadedEngine struct {
	cfg     EngineConfig
	adapter *engineproc.Adapter
	reg     *deadline.Register
}

// Worker runs on its own goroutine; see spec.md §4.2/§5.
type Worker struct {
	id       int
	queue    *jobqueue.Queue
	openings opening.Source
	sink     TranscriptSink
	engines  []EngineConfig
	boardSize int
	rule     board.Rule
	ruleCode int
	adj      game.Adjudication
	fatalError bool
	log      *obslog.Logger

	loaded       [2]*loadedEngine // slot 0/1 map to whatever two engine indices the current job needs
	restartLimiters map[int]*rate.Limiter

	Registers [2]*deadline.Register // exposed for the Supervisor's watchdog
}

// New constructs a Worker. Its two DeadlineRegisters are pre-allocated
// so the Supervisor can start watching them before any engine has been
// spawned.
func New(opts Options) *Worker {
	return &Worker{
		id:              opts.ID,
		queue:           opts.Queue,
		openings:        opts.Openings,
		sink:            opts.Writers,
		engines:         opts.Engines,
		boardSize:       opts.BoardSize,
		rule:            opts.Rule,
		ruleCode:        opts.RuleCode,
		adj:             opts.Adj,
		fatalError:      opts.FatalError,
		log:             opts.Log,
		restartLimiters: make(map[int]*rate.Limiter),
		Registers:       [2]*deadline.Register{{}, {}},
	}
}

// Run pulls jobs until the queue signals shutdown. It is meant to run
// on its own goroutine, one per configured worker slot.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, idx, total, shutdown := w.queue.Pop()
		if shutdown {
			w.teardown()
			return
		}

		select {
		case <-ctx.Done():
			w.teardown()
			return
		default:
		}

		w.playJob(ctx, job, idx, total)
	}
}

func (w *Worker) playJob(ctx context.Context, job jobqueue.Job, idx, total int) {
	engA, okA := w.ensureLoaded(ctx, 0, job.EngineA)
	engB, okB := w.ensureLoaded(ctx, 1, job.EngineB)

	logEntry := w.log.WithWorker(w.id).WithGame(job.ID, idx, total)

	if !okA || !okB {
		wld := 2
		reason := "crash"
		if !okA {
			wld = 0
		}
		logEntry.WithField("reason", reason).Warn("engine failed to (re)start; recording crash loss")
		result := w.queue.AddResult(job.PairID, wld)
		w.sink.Push(idx, Transcript{Job: job, WLD: wld, Reason: reason, BlackName: engineNameOrUnknown(engA), WhiteName: engineNameOrUnknown(engB)})
		_ = result
		if tourerr.New(tourerr.CodeSpawnFailure, reason).Fatal(w.fatalError) {
			logEntry.Error("-fatalError set; promoting engine spawn failure to a fatal stop")
			w.queue.StopFatal()
		}
		return
	}

	op, _, err := w.openings.Next(idx, w.id)
	if err != nil {
		logEntry.WithError(err).Error("failed to fetch opening")
		return
	}

	d := game.New(w.boardSize, w.rule, w.adj)
	res, err := d.Play(game.PlayParams{
		EngineA: adapterAsGameEngine(engA.adapter),
		EngineB: adapterAsGameEngine(engB.adapter),
		SpecA: game.EngineSpec{
			TimeoutTurnMS:  engA.cfg.TimeoutTurnMS,
			TimeoutMatchMS: engA.cfg.TimeoutMatchMS,
			IncrementMS:    engA.cfg.IncrementMS,
		},
		SpecB: game.EngineSpec{
			TimeoutTurnMS:  engB.cfg.TimeoutTurnMS,
			TimeoutMatchMS: engB.cfg.TimeoutMatchMS,
			IncrementMS:    engB.cfg.IncrementMS,
		},
		Reverse: job.Reverse,
		Op:      op,
	})
	if err != nil {
		logEntry.WithError(err).Error("illegal opening; aborting game")
		return
	}

	blackName, whiteName := engA.cfg.DisplayName, engB.cfg.DisplayName
	if job.Reverse {
		blackName, whiteName = engB.cfg.DisplayName, engA.cfg.DisplayName
	}

	w.queue.AddResult(job.PairID, res.WLD)
	w.sink.Push(idx, Transcript{
		Job:       job,
		Result:    res,
		WLD:       res.WLD,
		Reason:    res.Reason,
		BlackName: blackName,
		WhiteName: whiteName,
	})

	if res.Code != "" && tourerr.New(res.Code, res.Reason).Fatal(w.fatalError) {
		logEntry.WithField("reason", res.Reason).Error("-fatalError set; promoting engine-level error to a fatal stop")
		w.queue.StopFatal()
	}

	logEntry.WithFields(map[string]interface{}{
		"wld":    res.WLD,
		"reason": res.Reason,
	}).Infof("Game %d: %s vs %s: %s {%s}", idx, blackName, whiteName, wldLabel(res.WLD, job.Reverse), res.Reason)

	// crash recovery: restart before the next game uses this slot.
	if res.Reason == "crash" {
		if engA.adapter.IsCrashed() {
			w.loaded[0] = nil
		}
		if engB.adapter.IsCrashed() {
			w.loaded[1] = nil
		}
	}
}

func wldLabel(wld int, reverse bool) string {
	label := map[int]string{0: "loss", 1: "draw", 2: "win"}[wld]
	_ = reverse
	return label
}

func engineNameOrUnknown(le *loadedEngine) string {
	if le == nil || le.adapter == nil {
		return "unknown"
	}
	return le.adapter.Name()
}

// ensureLoaded returns the loaded engine for slot (0 or 1), restarting
// it if the job now wants a different engine identity or if it has
// crashed, per spec.md §4.2.
func (w *Worker) ensureLoaded(ctx context.Context, slot int, engineIdx int) (*loadedEngine, bool) {
	cfg := w.engines[engineIdx]

	current := w.loaded[slot]
	needsRestart := current == nil || current.cfg.Index != engineIdx || current.adapter.IsCrashed() || !current.adapter.IsOK()
	if !needsRestart {
		return current, true
	}

	if current != nil {
		limiter := w.restartLimiter(slot)
		if !limiter.Allow() {
			w.log.WithWorker(w.id).Warn("restart rate-limited; engine is crash-looping")
			return nil, false
		}
		current.adapter.Terminate(true)
	}

	reg := w.Registers[slot]
	adapter := engineproc.New(engineproc.Options{
		CommandPath:   cfg.Path,
		ToleranceMS:   cfg.ToleranceMS,
		Debug:         cfg.Debug,
		MemoryCapByte: cfg.MemoryCapBytes,
		Register:      reg,
		Log:           w.log,
	})
	if err := adapter.Start(ctx, cfg.DisplayName); err != nil {
		w.log.WithWorker(w.id).WithError(err).Error("engine failed to start")
		return nil, false
	}
	if err := handshake(adapter, w.boardSize, w.ruleCode, cfg); err != nil {
		w.log.WithWorker(w.id).WithError(err).Error("engine handshake failed")
		adapter.Terminate(true)
		return nil, false
	}

	w.queue.SetName(engineIdx, adapter.Name())
	le := &loadedEngine{cfg: cfg, adapter: adapter, reg: reg}
	w.loaded[slot] = le
	return le, true
}

func (w *Worker) restartLimiter(slot int) *rate.Limiter {
	if l, ok := w.restartLimiters[slot]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(5*time.Second), 3) // ~1 restart per 5s, burst 3
	w.restartLimiters[slot] = l
	return l
}

// handshake sends the START/INFO option lines and awaits OK, per
// spec.md §4.2.
func handshake(a *engineproc.Adapter, boardSize, ruleCode int, cfg EngineConfig) error {
	if err := a.Writeln(fmt.Sprintf("START %d", boardSize)); err != nil {
		return err
	}
	opts := []string{
		fmt.Sprintf("INFO timeout_turn %d", cfg.TimeoutTurnMS),
		fmt.Sprintf("INFO timeout_match %d", cfg.TimeoutMatchMS),
		fmt.Sprintf("INFO max_memory %d", cfg.MemoryCapBytes),
		fmt.Sprintf("INFO time_left %d", cfg.TimeoutMatchMS),
		"INFO game_type 1",
		fmt.Sprintf("INFO rule %d", ruleCode),
	}
	for _, line := range opts {
		if err := a.Writeln(line); err != nil {
			return err
		}
	}
	for k, v := range cfg.ExtraOptions {
		if err := a.Writeln(fmt.Sprintf("INFO %s %s", k, v)); err != nil {
			return err
		}
	}
	line, ok := a.Readln(msNowPlus(cfg.ToleranceMS+2000), "handshake")
	if !ok {
		return fmt.Errorf("no OK response from engine during handshake")
	}
	if line != "OK" {
		// tolerate engines that chatter before OK by reading one more line.
		line2, ok2 := a.Readln(msNowPlus(cfg.ToleranceMS+2000), "handshake")
		if !ok2 || line2 != "OK" {
			return fmt.Errorf("expected OK, got %q", line)
		}
	}
	return nil
}

func (w *Worker) teardown() {
	for i, le := range w.loaded {
		if le != nil {
			le.adapter.Terminate(false)
			w.loaded[i] = nil
		}
	}
}
