// Package deadline implements the per-Worker DeadlineRegister: a small
// mutex-guarded record of the engine currently being awaited and its
// wall-clock deadline, written by the Worker and read by the
// Supervisor's watchdog.
package deadline

import "sync"

// Register is one Worker's DeadlineRegister (spec.md §3).
type Register struct {
	mu sync.Mutex

	set           bool
	engineName    string
	description   string
	wallDeadline  int64
	started       int64
	callbackFired bool
	pid           int
}

// Snapshot is an immutable read of the register taken under its lock.
type Snapshot struct {
	Set           bool
	EngineName    string
	Description   string
	WallDeadline  int64
	Started       int64
	CallbackFired bool
	PID           int
}

// Arm records a new active deadline before a blocking engine call.
func (r *Register) Arm(engineName, description string, startedMS, deadlineMS int64, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = true
	r.engineName = engineName
	r.description = description
	r.started = startedMS
	r.wallDeadline = deadlineMS
	r.callbackFired = false
	r.pid = pid
}

// Clear is called after the blocking call completes, successfully or not.
func (r *Register) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = false
	r.callbackFired = false
}

// Read returns a consistent snapshot for the watchdog.
func (r *Register) Read() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Set:           r.set,
		EngineName:    r.engineName,
		Description:   r.description,
		WallDeadline:  r.wallDeadline,
		Started:       r.started,
		CallbackFired: r.callbackFired,
		PID:           r.pid,
	}
}

// MarkCallbackFired records that the watchdog has already invoked its
// one-shot termination callback for the currently armed deadline, so it
// is not invoked twice while the process lingers.
func (r *Register) MarkCallbackFired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set {
		r.callbackFired = true
	}
}
