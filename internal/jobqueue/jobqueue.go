// Package jobqueue implements the Job Queue component from spec.md
// §4.4: enumerates all scheduled (engine-pair, round, game-index) jobs,
// hands them to Workers, accumulates per-pair win/loss/draw counts, and
// supports an early-stop signal for SPRT.
package jobqueue

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Job is one scheduled game, per spec.md §3.
type Job struct {
	ID        string
	PairID    string
	Round     int
	GameIndex int
	EngineA   int
	EngineB   int
	Reverse   bool
}

// pairKey renders (a, b) with a < b as the PairID, matching spec.md's
// "for any (a,b) with a != b" invariant.
func pairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// PairResult is the running tally from engine-a's perspective for one
// pair, per spec.md §3.
type PairResult struct {
	NameA, NameB   string
	Wins, Losses, Draws int
}

func (r PairResult) Total() int { return r.Wins + r.Losses + r.Draws }

func (r PairResult) Score() float64 {
	if r.Total() == 0 {
		return 0
	}
	return (float64(r.Wins) + 0.5*float64(r.Draws)) / float64(r.Total())
}

// Snapshot is an immutable view of the queue's progress, for metrics
// and the cron-driven progress report.
type Snapshot struct {
	Completed int
	Total     int
	Pairs     map[string]PairResult
	Names     map[int]string
}

// Queue is the thread-safe job queue. All mutation is guarded by one
// mutex (spec.md §5: "JobQueue behind one mutex").
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	jobs      []Job
	next      int
	completed int
	stopped   bool
	fatal     bool
	pairs     map[string]*PairResult
	names     map[int]string
}

// Params controls job enumeration (spec.md §4.4 pseudocode).
type Params struct {
	NumEngines int
	Rounds     int
	Games      int
	Gauntlet   bool
}

// schedulePairs returns the scheduled unordered or gauntlet pairs in the order
// spec.md §4.4 specifies.
func schedulePairs(p Params) [][2]int {
	var out [][2]int
	if p.Gauntlet {
		for k := 1; k < p.NumEngines; k++ {
			out = append(out, [2]int{0, k})
		}
		return out
	}
	for a := 0; a < p.NumEngines; a++ {
		for b := a + 1; b < p.NumEngines; b++ {
			out = append(out, [2]int{a, b})
		}
	}
	return out
}

// New enumerates the full job list eagerly and returns a ready-to-pop
// Queue (spec.md §4.4: "the queue is eagerly populated").
func New(p Params) (*Queue, error) {
	if p.NumEngines < 2 {
		return nil, fmt.Errorf("need at least 2 engines, got %d", p.NumEngines)
	}
	if p.Rounds < 1 || p.Games < 1 {
		return nil, fmt.Errorf("rounds and games must be >= 1")
	}

	q := &Queue{
		pairs: make(map[string]*PairResult),
		names: make(map[int]string),
	}
	q.cond = sync.NewCond(&q.mu)

	pairs := schedulePairs(p)
	for round := 0; round < p.Rounds; round++ {
		for _, pr := range pairs {
			a, b := pr[0], pr[1]
			key := pairKey(a, b)
			if _, ok := q.pairs[key]; !ok {
				q.pairs[key] = &PairResult{}
			}
			for g := 0; g < p.Games; g++ {
				q.jobs = append(q.jobs, Job{
					ID:        uuid.NewString(),
					PairID:    key,
					Round:     round,
					GameIndex: g,
					EngineA:   a,
					EngineB:   b,
					Reverse:   g%2 == 1,
				})
			}
		}
	}
	return q, nil
}

// Total returns the total number of scheduled jobs.
func (q *Queue) Total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Pop atomically removes the head job, blocking until one is available
// or the queue is stopped/drained, per spec.md §4.4/§5 (condition
// variable wait while empty).
func (q *Queue) Pop() (job Job, idx, total int, shutdown bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.next >= len(q.jobs) && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped || q.next >= len(q.jobs) {
		return Job{}, 0, len(q.jobs), true
	}
	job = q.jobs[q.next]
	idx = q.next
	total = len(q.jobs)
	q.next++
	return job, idx, total, false
}

// AddResult increments the pair's W/L/D (wld relative to engine-a, per
// spec.md §4.3 result mapping: 0=loss, 1=draw, 2=win) and returns the
// updated counts.
func (q *Queue) AddResult(pairID string, wld int) PairResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	pr, ok := q.pairs[pairID]
	if !ok {
		pr = &PairResult{}
		q.pairs[pairID] = pr
	}
	switch wld {
	case 0:
		pr.Losses++
	case 1:
		pr.Draws++
	case 2:
		pr.Wins++
	}
	pr.NameA = q.names[pairEngineA(pairID)]
	pr.NameB = q.names[pairEngineB(pairID)]
	q.completed++

	if q.completed >= len(q.jobs) {
		q.stopped = true
		q.cond.Broadcast()
	}
	return *pr
}

func pairEngineA(pairID string) int {
	var a, b int
	fmt.Sscanf(pairID, "%d-%d", &a, &b)
	return a
}

func pairEngineB(pairID string) int {
	var a, b int
	fmt.Sscanf(pairID, "%d-%d", &a, &b)
	return b
}

// SetName records the authoritative display name for an engine index,
// once resolved from its ABOUT response.
func (q *Queue) SetName(engineIdx int, name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.names[engineIdx] = name
}

// Stop marks the queue as shut down; future Pop calls return shutdown.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
}

// Done reports whether every job has completed, or the queue was
// stopped early (e.g. by SPRT or SIGINT).
func (q *Queue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed >= len(q.jobs) || q.stopped
}

// StopFatal stops the queue and marks the stoppage as fatal, per
// spec.md §7's -fatalError: any engine-level error is promoted to a
// fatal tournament-ending condition instead of just a recorded loss.
func (q *Queue) StopFatal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.fatal = true
	q.cond.Broadcast()
}

// IsFatal reports whether the queue was stopped via StopFatal.
func (q *Queue) IsFatal() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fatal
}

// Snapshot returns a consistent copy of progress for metrics/reporting.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	pairs := make(map[string]PairResult, len(q.pairs))
	for k, v := range q.pairs {
		pairs[k] = *v
	}
	names := make(map[int]string, len(q.names))
	for k, v := range q.names {
		names[k] = v
	}
	return Snapshot{
		Completed: q.completed,
		Total:     len(q.jobs),
		Pairs:     pairs,
		Names:     names,
	}
}

// PrintResults renders a human table of standings, one row per pair.
func (q *Queue) PrintResults(gamesPerEncounter int) string {
	snap := q.Snapshot()
	keys := make([]string, 0, len(snap.Pairs))
	for k := range snap.Pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-24s %4s %4s %4s %7s\n", "Engine A", "Engine B", "W", "L", "D", "Score")
	for _, k := range keys {
		pr := snap.Pairs[k]
		fmt.Fprintf(&b, "%-24s %-24s %4d %4d %4d %6.1f%%\n",
			nameOr(pr.NameA, "engineA"), nameOr(pr.NameB, "engineB"),
			pr.Wins, pr.Losses, pr.Draws, pr.Score()*100)
	}
	_ = gamesPerEncounter
	return b.String()
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
