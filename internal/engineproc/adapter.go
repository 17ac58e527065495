// Package engineproc implements the Engine Process Adapter (spec.md
// §4.1): one child subprocess, full-duplex line-oriented I/O, protocol
// command emission, informational line parsing, and enforcement of
// per-request time budgets with a tolerance grace.
package engineproc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/r3e-network/gomocup-cli/internal/clock"
	"github.com/r3e-network/gomocup-cli/internal/deadline"
	"github.com/r3e-network/gomocup-cli/internal/obslog"
	"github.com/r3e-network/gomocup-cli/internal/protocol"
	"github.com/r3e-network/gomocup-cli/internal/tourerr"
	"github.com/shirou/gopsutil/v3/process"
)

// Observer receives the three callbacks the Game Driver wires up per
// spec.md §9 design notes ("best modeled as an observer interface with
// three methods"), avoiding cyclic ownership between the adapter and
// whatever consumes its transcript.
type Observer interface {
	OnMessage(engine, text string)
	OnInfo(engine string, ply int, info protocol.Info)
	OnMove(engine, move string)
}

// NoopObserver implements Observer by doing nothing.
type NoopObserver struct{}

func (NoopObserver) OnMessage(string, string)                {}
func (NoopObserver) OnInfo(string, int, protocol.Info)        {}
func (NoopObserver) OnMove(string, string)                    {}

// Adapter owns one child engine process.
type Adapter struct {
	name string // authoritative display name, set by start()

	cmdPath       string
	toleranceMS   int64
	debug         bool
	memoryCapByte int64

	cmd    *exec.Cmd
	stdin  *bufio.Writer
	stdout *bufio.Reader
	stdinC io.WriteCloser

	register *deadline.Register
	log      *obslog.Logger
	observer Observer

	messages strings.Builder
	lastInfo protocol.Info

	crashed   atomic.Bool
	crashNote atomic.Value // string

	mu sync.Mutex
}

// Options configures a new Adapter.
type Options struct {
	CommandPath   string
	ToleranceMS   int64
	Debug         bool
	MemoryCapByte int64
	Register      *deadline.Register
	Log           *obslog.Logger
	Observer      Observer
}

// New constructs an unstarted Adapter.
func New(opts Options) *Adapter {
	obs := opts.Observer
	if obs == nil {
		obs = NoopObserver{}
	}
	return &Adapter{
		cmdPath:       opts.CommandPath,
		toleranceMS:   opts.ToleranceMS,
		debug:         opts.Debug,
		memoryCapByte: opts.MemoryCapByte,
		register:      opts.Register,
		log:           opts.Log,
		observer:      obs,
	}
}

// Name returns the engine's authoritative display name, resolved during
// Start from its ABOUT response (or the fallback name if empty).
func (a *Adapter) Name() string { return a.name }

// IsOK reports whether the adapter currently owns a live process.
func (a *Adapter) IsOK() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cmd != nil && a.cmd.Process != nil && !a.crashed.Load()
}

// IsCrashed reports whether a prior read/write observed the process as
// gone (spec.md §4.1 crash detection).
func (a *Adapter) IsCrashed() bool {
	return a.crashed.Load()
}

// CrashReason returns the last recorded crash reason, if any.
func (a *Adapter) CrashReason() string {
	if v := a.crashNote.Load(); v != nil {
		return v.(string)
	}
	return ""
}

func (a *Adapter) markCrashed(reason string) {
	a.crashed.Store(true)
	a.crashNote.Store(reason)
}

// Start spawns the child with cwd set to the binary's directory, wires
// up line-buffered stdin/stdout, sends ABOUT, and resolves the display
// name.
func (a *Adapter) Start(ctx context.Context, displayName string) error {
	dir := filepath.Dir(a.cmdPath)
	cmd := exec.CommandContext(ctx, a.cmdPath)
	cmd.Dir = dir
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return tourerr.SpawnFailure(displayName, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return tourerr.SpawnFailure(displayName, err)
	}
	if a.debug {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return tourerr.SpawnFailure(displayName, err)
	}

	a.mu.Lock()
	a.cmd = cmd
	a.stdinC = stdin
	a.stdin = bufio.NewWriter(stdin)
	a.stdout = bufio.NewReader(stdout)
	a.mu.Unlock()

	if err := a.writelnLocked("ABOUT"); err != nil {
		return err
	}
	line, ok := a.readlnRaw(clock.NowMS()+2000, "about")
	name := displayName
	if ok {
		if parsed := parseAboutName(line); parsed != "" {
			name = parsed
		}
	}
	a.name = name
	return nil
}

func parseAboutName(line string) string {
	kind, tail := protocol.Classify(line)
	if kind != protocol.KindUnrecognized {
		return ""
	}
	for _, tok := range strings.Fields(tail) {
		if strings.HasPrefix(strings.ToLower(tok), "name=") {
			v := strings.Trim(tok[len("name="):], "\"")
			return v
		}
	}
	return ""
}

// Writeln appends a newline and sends the line to the child.
func (a *Adapter) Writeln(line string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writelnLocked(line)
}

func (a *Adapter) writelnLocked(line string) error {
	if a.stdin == nil {
		return tourerr.PipeBroken(a.name)
	}
	if _, err := a.stdin.WriteString(line + "\n"); err != nil {
		a.markCrashed("write")
		return tourerr.PipeBroken(a.name)
	}
	if err := a.stdin.Flush(); err != nil {
		a.markCrashed("write")
		return tourerr.PipeBroken(a.name)
	}
	return nil
}

// Readln reads one line, arming the caller's DeadlineRegister first and
// clearing it on return, per spec.md §4.1. Returns false on EOF or if
// the watchdog already terminated this engine.
func (a *Adapter) Readln(deadlineMS int64, desc string) (string, bool) {
	pid := 0
	a.mu.Lock()
	if a.cmd != nil && a.cmd.Process != nil {
		pid = a.cmd.Process.Pid
	}
	a.mu.Unlock()

	if a.register != nil {
		a.register.Arm(a.name, desc, clock.NowMS(), deadlineMS, pid)
		defer a.register.Clear()
	}
	return a.readlnRaw(deadlineMS, desc)
}

func (a *Adapter) readlnRaw(_ int64, _ string) (string, bool) {
	a.mu.Lock()
	r := a.stdout
	a.mu.Unlock()
	if r == nil {
		a.markCrashed("no stdout")
		return "", false
	}
	line, err := r.ReadString('\n')
	if err != nil {
		if len(line) == 0 {
			a.markCrashed("eof")
			return "", false
		}
	}
	return strings.TrimRight(line, "\r\n"), true
}

// Think sends TURN x,y (or BEGIN for the very first move) and consumes
// lines until a coordinate line appears, classifying intermediate lines
// per spec.md §4.1. It decrements timeLeft by the elapsed wall time and
// fails with Timeout if elapsed exceeds the turn budget plus tolerance.
func (a *Adapter) Think(timeLeft *int64, turnBudgetMS int64, ply int, isFirstMove bool, opponentMove string) (move string, info protocol.Info, err error) {
	if isFirstMove {
		if werr := a.Writeln("BEGIN"); werr != nil {
			return "", protocol.Info{}, werr
		}
	} else {
		if werr := a.Writeln(fmt.Sprintf("TURN %s", opponentMove)); werr != nil {
			return "", protocol.Info{}, werr
		}
	}

	start := clock.NowMS()
	var deadlineMS int64
	if turnBudgetMS > 0 {
		deadlineMS = start + turnBudgetMS + a.toleranceMS
	} else {
		deadlineMS = start + (24 * time.Hour).Milliseconds()
	}

	info = a.lastInfo
	for {
		line, ok := a.Readln(deadlineMS, "think")
		if !ok {
			a.markCrashed("eof-during-think")
			if turnBudgetMS > 0 && clock.NowMS() >= deadlineMS {
				// the watchdog killed the engine at its deadline
				elapsed := clock.Since(start)
				*timeLeft -= elapsed
				return "", info, tourerr.Timeout(a.name, elapsed, turnBudgetMS)
			}
			return "", info, tourerr.Crash(a.name, "eof while waiting for move")
		}
		kind, tail := protocol.Classify(line)
		switch kind {
		case protocol.KindMove:
			elapsed := clock.Since(start)
			if turnBudgetMS > 0 && elapsed > turnBudgetMS+a.toleranceMS {
				*timeLeft -= elapsed
				return "", info, tourerr.Timeout(a.name, elapsed, turnBudgetMS)
			}
			*timeLeft -= elapsed
			a.lastInfo = info
			a.observer.OnMove(a.name, tail)
			return tail, info, nil
		case protocol.KindMessage:
			a.observer.OnMessage(a.name, tail)
			if protocol.ContainsInfoTokens(tail) {
				info = protocol.MergeInfo(info, tail)
				a.observer.OnInfo(a.name, ply, info)
			}
		case protocol.KindInfo:
			info = protocol.MergeInfo(info, tail)
			a.observer.OnInfo(a.name, ply, info)
		case protocol.KindDebug:
			if a.debug {
				a.observer.OnMessage(a.name, "DEBUG "+tail)
			}
			a.messages.WriteString(tail)
			a.messages.WriteByte('\n')
		case protocol.KindError:
			return "", info, tourerr.Wrap(tourerr.CodeProtocolViolation, "engine reported an error", fmt.Errorf("%s", tail)).WithDetail("engine", a.name)
		case protocol.KindUnknown:
			a.observer.OnMessage(a.name, "UNKNOWN "+tail)
		case protocol.KindSuggest:
			// advisory only, ignored for move selection.
		default:
			a.observer.OnMessage(a.name, line)
		}

		if clock.NowMS() > deadlineMS {
			elapsed := clock.Since(start)
			*timeLeft -= elapsed
			return "", info, tourerr.Timeout(a.name, elapsed, turnBudgetMS)
		}
	}
}

// Terminate sends END, waits a short grace, then kills the process
// group. Idempotent.
func (a *Adapter) Terminate(force bool) {
	a.mu.Lock()
	cmd := a.cmd
	a.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}

	if !force {
		_ = a.Writeln("END")
		done := make(chan struct{})
		go func() {
			_, _ = cmd.Process.Wait()
			close(done)
		}()
		select {
		case <-done:
			return
		case <-time.After(200 * time.Millisecond):
		}
	}

	killProcessGroup(cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-waitCh(cmd):
		return
	case <-time.After(350 * time.Millisecond):
	}
	killProcessGroup(cmd.Process.Pid, syscall.SIGKILL)
	<-waitCh(cmd)
}

func waitCh(cmd *exec.Cmd) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(ch)
	}()
	return ch
}

// SampleMemoryBytes samples the child's RSS via gopsutil; a non-nil
// error or a sample over MemoryCapByte (when set) signals the caller
// should treat the engine as crashed for exceeding its memory cap.
func (a *Adapter) SampleMemoryBytes() (bytes int64, overCap bool, err error) {
	a.mu.Lock()
	cmd := a.cmd
	a.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return 0, false, nil
	}
	proc, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		return 0, false, err
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return 0, false, err
	}
	if a.memoryCapByte > 0 && int64(mem.RSS) > a.memoryCapByte {
		return int64(mem.RSS), true, nil
	}
	return int64(mem.RSS), false, nil
}

// Messages returns the accumulated DEBUG-line buffer.
func (a *Adapter) Messages() string { return a.messages.String() }
