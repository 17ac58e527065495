package game

import (
	"testing"

	"github.com/r3e-network/gomocup-cli/internal/board"
	"github.com/r3e-network/gomocup-cli/internal/opening"
	"github.com/r3e-network/gomocup-cli/internal/protocol"
	"github.com/r3e-network/gomocup-cli/internal/tourerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine plays a fixed, scripted sequence of moves and optionally
// fails on a given call index.
type fakeEngine struct {
	name    string
	moves   []string
	scores  []int
	calls   int
	failAt  int
	failErr error
	written []string
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Writeln(line string) error {
	f.written = append(f.written, line)
	return nil
}

func (f *fakeEngine) Think(timeLeft *int64, turnBudgetMS int64, ply int, isFirstMove bool, opponentMove string) (string, protocol.Info, error) {
	idx := f.calls
	f.calls++
	if f.failErr != nil && idx == f.failAt {
		return "", protocol.Info{}, f.failErr
	}
	if idx >= len(f.moves) {
		return "", protocol.Info{}, tourerr.Crash(f.name, "ran out of scripted moves")
	}
	score := 0
	if idx < len(f.scores) {
		score = f.scores[idx]
	}
	return f.moves[idx], protocol.Info{Score: score}, nil
}

func emptySpec() EngineSpec {
	return EngineSpec{TimeoutTurnMS: 0, TimeoutMatchMS: 0, IncrementMS: 0}
}

func TestPlayFreestyleFiveInARowWin(t *testing.T) {
	d := New(5, board.NewRule(board.Freestyle), Adjudication{})
	// Black (engine A) builds a horizontal five on row 0; white plays
	// harmlessly on row 4.
	a := &fakeEngine{name: "A", moves: []string{"0,0", "1,0", "2,0", "3,0", "4,0"}}
	b := &fakeEngine{name: "B", moves: []string{"0,4", "1,4", "2,4", "3,4"}}

	res, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec()})
	require.NoError(t, err)
	assert.Equal(t, 2, res.WLD, "engine A (black) completed five in a row")
	assert.Equal(t, "normal", res.Reason)
}

func TestPlayReverseFlipsWLDPerspective(t *testing.T) {
	d := New(5, board.NewRule(board.Freestyle), Adjudication{})
	// With Reverse=true, EngineB plays black and wins; from A's
	// perspective that is a loss (WLD=0).
	a := &fakeEngine{name: "A", moves: []string{"0,4", "1,4", "2,4", "3,4"}}
	b := &fakeEngine{name: "B", moves: []string{"0,0", "1,0", "2,0", "3,0", "4,0"}}

	res, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec(), Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.WLD)
}

func TestPlayIllegalMoveLosesForTheMover(t *testing.T) {
	d := New(5, board.NewRule(board.Freestyle), Adjudication{})
	a := &fakeEngine{name: "A", moves: []string{"0,0", "99,99"}} // out of bounds on A's second move
	b := &fakeEngine{name: "B", moves: []string{"1,1"}}

	res, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec()})
	require.NoError(t, err)
	assert.Equal(t, "illegal", res.Reason)
	assert.Equal(t, 0, res.WLD, "A played the illegal move and must lose")
}

func TestPlayCrashEndsGameInFavorOfOpponent(t *testing.T) {
	d := New(5, board.NewRule(board.Freestyle), Adjudication{})
	a := &fakeEngine{name: "A", moves: []string{"0,0"}, failAt: 1, failErr: tourerr.Crash("A", "boom")}
	b := &fakeEngine{name: "B", moves: []string{"1,1"}}

	res, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec()})
	require.NoError(t, err)
	assert.Equal(t, "crash", res.Reason)
	assert.Equal(t, 0, res.WLD, "A crashed on its second move, B must win")
}

func TestPlayResignAdjudication(t *testing.T) {
	adj := Adjudication{ResignCount: 2, ResignScore: 500}
	d := New(9, board.NewRule(board.Freestyle), adj)
	// Black (A) posts two deeply negative scores in a row and resigns.
	a := &fakeEngine{name: "A", moves: []string{"0,0", "1,0", "2,0"}, scores: []int{-600, -600, -600}}
	b := &fakeEngine{name: "B", moves: []string{"0,1", "1,1", "2,1"}, scores: []int{0, 0, 0}}

	res, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec()})
	require.NoError(t, err)
	assert.Equal(t, "resign", res.Reason)
	assert.Equal(t, 0, res.WLD, "A resigned, B must be awarded the win")
}

func TestPlayForceDrawAfterPlyLimit(t *testing.T) {
	adj := Adjudication{ForceDrawAfter: 2}
	d := New(9, board.NewRule(board.Freestyle), adj)
	a := &fakeEngine{name: "A", moves: []string{"0,0"}}
	b := &fakeEngine{name: "B", moves: []string{"0,1"}}

	res, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec()})
	require.NoError(t, err)
	assert.Equal(t, "force_draw", res.Reason)
	assert.Equal(t, 1, res.WLD)
}

func TestPlayZeroMoveOpeningSendsNoBoardCommand(t *testing.T) {
	d := New(5, board.NewRule(board.Freestyle), Adjudication{})
	a := &fakeEngine{name: "A", moves: []string{"0,0"}, failAt: 1, failErr: tourerr.Crash("A", "stop")}
	b := &fakeEngine{name: "B", moves: []string{"1,1"}}

	_, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec(), Op: opening.Opening{}})
	require.NoError(t, err)
	assert.Empty(t, a.written, "a zero-move opening must not send a BOARD command")
	assert.Empty(t, b.written)
}

func TestPlayAppliesNonEmptyOpeningAndNotifiesBothEngines(t *testing.T) {
	d := New(9, board.NewRule(board.Freestyle), Adjudication{})
	op := opening.Opening{Moves: []opening.Point{{X: 4, Y: 4}, {X: 4, Y: 5}}}
	a := &fakeEngine{name: "A", moves: []string{"0,0"}, failAt: 1, failErr: tourerr.Crash("A", "stop")}
	b := &fakeEngine{name: "B", moves: []string{"1,1"}}

	_, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec(), Op: op})
	require.NoError(t, err)
	require.Len(t, a.written, 1)
	assert.Contains(t, a.written[0], "BOARD")
	assert.Contains(t, a.written[0], "4,4,1")
	assert.Contains(t, a.written[0], "4,5,2")
	assert.Equal(t, a.written[0], b.written[0])
}

func TestPlayIllegalOpeningIsRejected(t *testing.T) {
	d := New(5, board.NewRule(board.Freestyle), Adjudication{})
	op := opening.Opening{Moves: []opening.Point{{X: 99, Y: 99}}}
	a := &fakeEngine{name: "A"}
	b := &fakeEngine{name: "B"}

	_, err := d.Play(PlayParams{EngineA: a, EngineB: b, SpecA: emptySpec(), SpecB: emptySpec(), Op: op})
	require.Error(t, err)
	te, ok := err.(*tourerr.TournamentError)
	require.True(t, ok)
	assert.Equal(t, tourerr.CodeIllegalOpening, te.Code)
}
