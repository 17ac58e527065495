package worker

import (
	"context"
	"testing"

	"github.com/r3e-network/gomocup-cli/internal/board"
	"github.com/r3e-network/gomocup-cli/internal/game"
	"github.com/r3e-network/gomocup-cli/internal/jobqueue"
	"github.com/r3e-network/gomocup-cli/internal/obslog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	pushed []Transcript
}

func (f *fakeSink) Push(idx int, t Transcript) { f.pushed = append(f.pushed, t) }

func TestNewPreallocatesDeadlineRegisters(t *testing.T) {
	q, err := jobqueue.New(jobqueue.Params{NumEngines: 2, Rounds: 1, Games: 1})
	require.NoError(t, err)

	w := New(Options{
		ID:        3,
		Queue:     q,
		Writers:   &fakeSink{},
		BoardSize: 15,
		Rule:      board.NewRule(board.Freestyle),
		Adj:       game.Adjudication{},
	})

	assert.Equal(t, 3, w.id)
	require.NotNil(t, w.Registers[0])
	require.NotNil(t, w.Registers[1])
	assert.False(t, w.Registers[0].Read().Set)
	assert.False(t, w.Registers[1].Read().Set)
}

func TestWldLabel(t *testing.T) {
	assert.Equal(t, "loss", wldLabel(0, false))
	assert.Equal(t, "draw", wldLabel(1, false))
	assert.Equal(t, "win", wldLabel(2, false))
}

func TestEngineNameOrUnknownHandlesNilEngine(t *testing.T) {
	assert.Equal(t, "unknown", engineNameOrUnknown(nil))
	assert.Equal(t, "unknown", engineNameOrUnknown(&loadedEngine{}))
}

func TestFatalErrorPromotesSpawnFailureToQueueStopFatal(t *testing.T) {
	q, err := jobqueue.New(jobqueue.Params{NumEngines: 2, Rounds: 1, Games: 1})
	require.NoError(t, err)
	job, idx, total, shutdown := q.Pop()
	require.False(t, shutdown)

	missing := EngineConfig{Path: "/nonexistent-gomocup-engine-binary-xyz"}
	w := New(Options{
		ID:         0,
		Queue:      q,
		Writers:    &fakeSink{},
		Engines:    []EngineConfig{missing, missing},
		BoardSize:  15,
		Rule:       board.NewRule(board.Freestyle),
		Adj:        game.Adjudication{},
		FatalError: true,
		Log:        obslog.NewDiscard(),
	})

	w.playJob(context.Background(), job, idx, total)
	assert.True(t, q.IsFatal(), "a spawn failure must be promoted to a fatal stop when FatalError is set")
}

func TestWithoutFatalErrorSpawnFailureIsJustALoss(t *testing.T) {
	q, err := jobqueue.New(jobqueue.Params{NumEngines: 2, Rounds: 1, Games: 1})
	require.NoError(t, err)
	job, idx, total, shutdown := q.Pop()
	require.False(t, shutdown)

	missing := EngineConfig{Path: "/nonexistent-gomocup-engine-binary-xyz"}
	sink := &fakeSink{}
	w := New(Options{
		ID:        0,
		Queue:     q,
		Writers:   sink,
		Engines:   []EngineConfig{missing, missing},
		BoardSize: 15,
		Rule:      board.NewRule(board.Freestyle),
		Adj:       game.Adjudication{},
		Log:       obslog.NewDiscard(),
	})

	w.playJob(context.Background(), job, idx, total)
	assert.False(t, q.IsFatal())
	require.Len(t, sink.pushed, 1)
	assert.Equal(t, "crash", sink.pushed[0].Reason)
}
