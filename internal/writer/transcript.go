package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/r3e-network/gomocup-cli/internal/board"
	"github.com/r3e-network/gomocup-cli/internal/worker"
)

// TranscriptSink adapts a Sequencer to worker.TranscriptSink so a Worker
// can Push(idx, worker.Transcript) without knowing about the sequencer's
// `any`-typed payload underneath, or about how many output writers are
// actually listening.
type TranscriptSink struct {
	seq *Sequencer
}

// NewTranscriptSink builds a TranscriptSink that fans each in-order
// Transcript out to every configured writer, per spec.md §6.
func NewTranscriptSink(writers ...TranscriptWriter) *TranscriptSink {
	s := &TranscriptSink{}
	s.seq = NewSequencer(func(idx int, payload any) {
		t := payload.(worker.Transcript)
		for _, w := range writers {
			_ = w.WriteGame(idx, t)
		}
	})
	return s
}

// Push satisfies worker.TranscriptSink.
func (s *TranscriptSink) Push(idx int, t worker.Transcript) {
	s.seq.Push(idx, t)
}

// TranscriptWriter is implemented by each concrete output sink (PGN,
// SGF, message log, sample file).
type TranscriptWriter interface {
	WriteGame(idx int, t worker.Transcript) error
	Close() error
}

// PGNWriter emits a standard seven-tag-roster PGN per game, plus a FEN
// tag describing the gomoku opening, per spec.md §6.
type PGNWriter struct {
	w io.WriteCloser
}

func NewPGNWriter(w io.WriteCloser) *PGNWriter { return &PGNWriter{w: w} }

func (p *PGNWriter) WriteGame(idx int, t worker.Transcript) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[Event \"Gomocup Tournament\"]\n")
	fmt.Fprintf(&b, "[Site \"?\"]\n")
	fmt.Fprintf(&b, "[Date \"????.??.??\"]\n")
	fmt.Fprintf(&b, "[Round \"%d.%d\"]\n", t.Job.Round+1, t.Job.GameIndex+1)
	fmt.Fprintf(&b, "[White \"%s\"]\n", t.WhiteName)
	fmt.Fprintf(&b, "[Black \"%s\"]\n", t.BlackName)
	fmt.Fprintf(&b, "[Result \"%s\"]\n", pgnResult(t.WLD, t.Job.Reverse))
	if t.Result.Position != nil {
		fmt.Fprintf(&b, "[FEN \"%s\"]\n", fenFromOpening(t.Result.Position))
	}
	b.WriteString("\n")
	if t.Result.Position != nil {
		writeMoves(&b, t.Result.Position)
	}
	fmt.Fprintf(&b, " %s\n\n", pgnResult(t.WLD, t.Job.Reverse))
	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *PGNWriter) Close() error { return p.w.Close() }

// winnerColor maps a Transcript's engine-a-perspective WLD back to the
// board color that actually won, per game.Driver.Play's toWLDForA:
// wld==2 means engine A won, and A plays black unless Job.Reverse
// flipped the seating (internal/game/driver.go's blackIsA).
func winnerColor(wld int, reverse bool) board.Color {
	if wld == 1 {
		return board.Empty
	}
	aWon := wld == 2
	aIsBlack := !reverse
	if aWon == aIsBlack {
		return board.Black
	}
	return board.White
}

// pgnResult renders the standard PGN result tag from the actual winning
// board color, not a fixed engine-a-is-black assumption.
func pgnResult(wld int, reverse bool) string {
	switch winnerColor(wld, reverse) {
	case board.Empty:
		return "1/2-1/2"
	case board.Black:
		return "0-1"
	default:
		return "1-0"
	}
}

func fenFromOpening(pos *board.Position) string {
	var b strings.Builder
	for i, mv := range pos.History {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%d,%d,%s", mv.X, mv.Y, mv.Color)
	}
	return b.String()
}

func writeMoves(b *strings.Builder, pos *board.Position) {
	for i, mv := range pos.History {
		if i%2 == 0 {
			fmt.Fprintf(b, "%d. ", i/2+1)
		}
		fmt.Fprintf(b, "%s ", goCoord(mv.X, mv.Y))
	}
}

// goCoord renders a move in Go(-board)-style coordinate notation
// (letter column, 1-based row), per spec.md §6.
func goCoord(x, y int) string {
	col := rune('a' + x)
	return fmt.Sprintf("%c%d", col, y+1)
}

// SGFWriter emits FF[4] SGF with GM[4] (the SGF "Go" game-type code,
// reused for gomoku per spec.md §6), board size, and moves.
type SGFWriter struct {
	w io.WriteCloser
}

func NewSGFWriter(w io.WriteCloser) *SGFWriter { return &SGFWriter{w: w} }

func (s *SGFWriter) WriteGame(idx int, t worker.Transcript) error {
	var b strings.Builder
	size := 15
	pos := t.Result.Position
	if pos != nil {
		size = pos.Size
	}
	fmt.Fprintf(&b, "(;FF[4]GM[4]SZ[%d]PB[%s]PW[%s]RE[%s]\n", size, t.BlackName, t.WhiteName, sgfResult(t.WLD, t.Job.Reverse))
	if pos != nil {
		for _, mv := range pos.History {
			tag := "B"
			if mv.Color == board.White {
				tag = "W"
			}
			fmt.Fprintf(&b, ";%s[%s]", tag, sgfCoord(mv.X, mv.Y))
		}
	}
	b.WriteString(")\n")
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *SGFWriter) Close() error { return s.w.Close() }

func sgfResult(wld int, reverse bool) string {
	switch winnerColor(wld, reverse) {
	case board.Empty:
		return "Draw"
	case board.Black:
		return "B+"
	default:
		return "W+"
	}
}

func sgfCoord(x, y int) string {
	return fmt.Sprintf("%c%c", 'a'+x, 'a'+y)
}

// MessageLogWriter emits a plain-text block per game, separated by a
// dashed rule, per spec.md §6: the game id, the engines and the result
// with its reason. Engine chatter (MESSAGE/DEBUG lines) is not written.
type MessageLogWriter struct {
	w io.WriteCloser
}

func NewMessageLogWriter(w io.WriteCloser) *MessageLogWriter {
	return &MessageLogWriter{w: w}
}

func (m *MessageLogWriter) WriteGame(idx int, t worker.Transcript) error {
	var b strings.Builder
	fmt.Fprintf(&b, "----------------------------------------\n")
	fmt.Fprintf(&b, "Game ID: %d\n", idx)
	fmt.Fprintf(&b, "Engines: %s x %s\n", t.BlackName, t.WhiteName)
	fmt.Fprintf(&b, "Result: %s (%s)\n", sgfResult(t.WLD, t.Job.Reverse), t.Reason)
	_, err := io.WriteString(m.w, b.String())
	return err
}

func (m *MessageLogWriter) Close() error { return m.w.Close() }
