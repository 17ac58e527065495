package supervisor

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/r3e-network/gomocup-cli/internal/board"
	"github.com/r3e-network/gomocup-cli/internal/jobqueue"
	"github.com/r3e-network/gomocup-cli/internal/metrics"
	"github.com/r3e-network/gomocup-cli/internal/obslog"
	"github.com/r3e-network/gomocup-cli/internal/sprt"
	"github.com/r3e-network/gomocup-cli/internal/worker"
	"github.com/r3e-network/gomocup-cli/internal/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustParseVariantFallsBackToFreestyle(t *testing.T) {
	assert.Equal(t, board.Freestyle, mustParseVariant("not-a-rule"))
	assert.Equal(t, board.Renju, mustParseVariant("renju"))
}

func TestSprtSinkStopsQueueOnBoundaryCrossed(t *testing.T) {
	q, err := jobqueue.New(jobqueue.Params{NumEngines: 2, Rounds: 1, Games: 1000})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sp := sprt.New(sprt.Params{Elo0: 0, Elo1: 50, Alpha: 0.05, Beta: 0.05})

	sink := &sprtSink{
		inner:    writer.NewTranscriptSink(),
		queue:    q,
		sprtTest: sp,
		metrics:  m,
		log:      obslog.NewDiscard(),
	}

	for i := 0; i < 1000 && !q.Done(); i++ {
		sink.Push(i, worker.Transcript{WLD: 2})
	}
	assert.True(t, q.Done(), "enough consecutive wins must cross the SPRT accept boundary and stop the queue")
}

func TestSprtSinkWithoutSPRTNeverStopsQueue(t *testing.T) {
	q, err := jobqueue.New(jobqueue.Params{NumEngines: 2, Rounds: 1, Games: 5})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sink := &sprtSink{inner: writer.NewTranscriptSink(), queue: q, metrics: m, log: obslog.NewDiscard()}

	for i := 0; i < 5; i++ {
		sink.Push(i, worker.Transcript{WLD: 2})
	}
	assert.False(t, q.Done(), "queue has 5 jobs total and AddResult was never called, so it isn't done yet")
}

type failingCloser struct{ err error }

func (f failingCloser) Close() error { return f.err }

func TestCloseWritersAggregatesErrors(t *testing.T) {
	s := &Supervisor{
		closers: []Closer{
			failingCloser{err: nil},
			failingCloser{err: errors.New("disk full")},
			failingCloser{err: errors.New("broken pipe")},
		},
		log: obslog.NewDiscard(),
	}

	err := s.closeWriters()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestCloseWritersNilWhenAllSucceed(t *testing.T) {
	s := &Supervisor{closers: []Closer{failingCloser{}, failingCloser{}}, log: obslog.NewDiscard()}
	assert.NoError(t, s.closeWriters())
}
