// Package game implements the Game Driver component from spec.md §4.3:
// the one-game state machine driving a Gomoku match through the Gomocup
// protocol — opening placement, alternating thinking, legality/terminal
// checks, transcript capture, and adjudication.
package game

import (
	"fmt"

	"github.com/r3e-network/gomocup-cli/internal/board"
	"github.com/r3e-network/gomocup-cli/internal/opening"
	"github.com/r3e-network/gomocup-cli/internal/protocol"
	"github.com/r3e-network/gomocup-cli/internal/tourerr"
)

// State names the Game Driver's state machine states (spec.md §4.3).
type State int

const (
	StateOpening State = iota
	StateToMove
	StateTerminated
)

// Engine is the subset of engineproc.Adapter the Game Driver depends
// on, kept as an interface so games are testable without a real
// subprocess.
type Engine interface {
	Name() string
	Writeln(line string) error
	Think(timeLeft *int64, turnBudgetMS int64, ply int, isFirstMove bool, opponentMove string) (move string, info protocol.Info, err error)
}

// EngineSpec carries the per-engine timing parameters the Driver needs
// (subset of the full config.EngineSpec).
type EngineSpec struct {
	TimeoutTurnMS  int64
	TimeoutMatchMS int64
	IncrementMS    int64
}

// Adjudication carries the resign/draw/force-draw parameters from
// spec.md §3.
type Adjudication struct {
	ResignCount    int
	ResignScore    int
	DrawCount      int
	DrawScore      int
	ForceDrawAfter int
}

// Result is the GameResult from spec.md §3: WLD from engine-a's
// perspective (0=loss, 1=draw, 2=win), reason, final position, and the
// per-move Info history. Code is non-empty only when Reason stems from
// an engine-level error (crash/timeout/illegal move/protocol
// violation), for the caller's -fatalError promotion decision.
type Result struct {
	WLD      int
	Reason   string
	Code     tourerr.Code
	Position *board.Position
	Infos    []protocol.Info
}

// Driver plays one game between two engines.
type Driver struct {
	boardSize int
	rule      board.Rule
	adj       Adjudication
}

// New constructs a Driver for the given board size, rule variant, and
// adjudication policy.
func New(boardSize int, rule board.Rule, adj Adjudication) *Driver {
	return &Driver{boardSize: boardSize, rule: rule, adj: adj}
}

// scoreHistory tracks the trailing Info.Score values per mover, used by
// the resign/draw-by-score adjudications.
type scoreHistory struct {
	blackScores []int
	whiteScores []int
}

func (h *scoreHistory) push(color board.Color, score int) {
	if color == board.Black {
		h.blackScores = append(h.blackScores, score)
	} else {
		h.whiteScores = append(h.whiteScores, score)
	}
}

func trailingAllLE(scores []int, n, threshold int) bool {
	if len(scores) < n {
		return false
	}
	for _, s := range scores[len(scores)-n:] {
		if s > threshold {
			return false
		}
	}
	return true
}

func trailingAllAbsLE(scores []int, n, threshold int) bool {
	if len(scores) < n {
		return false
	}
	for _, s := range scores[len(scores)-n:] {
		if abs(s) > threshold {
			return false
		}
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// PlayParams bundles the per-game inputs the Driver needs: which engine
// plays which color (reverse flips this per spec.md §4.3 "wld is
// flipped when reverse is true"), the opening, and per-engine timing.
type PlayParams struct {
	EngineA, EngineB Engine // A is always "engine-a" for WLD/SPRT perspective
	SpecA, SpecB     EngineSpec
	Reverse          bool
	Op               opening.Opening
}

// Play runs one game to completion and returns its Result.
func (d *Driver) Play(p PlayParams) (Result, error) {
	pos := board.NewPosition(d.boardSize)

	if err := d.applyOpening(pos, p.Op, p.EngineA, p.EngineB); err != nil {
		return Result{Position: pos, Reason: "illegal_opening"}, err
	}

	// blackEngine/whiteEngine map colors to the two Engine handles;
	// blackSpec/whiteSpec likewise. reverse flips which of A/B plays
	// black first.
	var blackEngine, whiteEngine Engine
	var blackSpec, whiteSpec EngineSpec
	var blackIsA bool
	if !p.Reverse {
		blackEngine, whiteEngine = p.EngineA, p.EngineB
		blackSpec, whiteSpec = p.SpecA, p.SpecB
		blackIsA = true
	} else {
		blackEngine, whiteEngine = p.EngineB, p.EngineA
		blackSpec, whiteSpec = p.SpecB, p.SpecA
		blackIsA = false
	}

	timeLeftBlack := blackSpec.TimeoutMatchMS
	timeLeftWhite := whiteSpec.TimeoutMatchMS

	var hist scoreHistory
	var infos []protocol.Info
	ply := len(pos.History)
	lastMove := ""
	firstMove := ply == 0

	toWLDForA := func(winner board.Color) int {
		// winner is in board-color terms; map to A/B then to WLD.
		var aWon, draw bool
		switch winner {
		case board.Empty:
			draw = true
		case board.Black:
			aWon = blackIsA
		case board.White:
			aWon = !blackIsA
		}
		switch {
		case draw:
			return 1
		case aWon:
			return 2
		default:
			return 0
		}
	}

	for {
		mover := pos.ToMove
		var engine Engine
		var spec EngineSpec
		var timeLeft *int64
		if mover == board.Black {
			engine, spec, timeLeft = blackEngine, blackSpec, &timeLeftBlack
		} else {
			engine, spec, timeLeft = whiteEngine, whiteSpec, &timeLeftWhite
		}

		// turnBudget = min(turn timeout, match time left); 0 means no cap.
		turnBudget := spec.TimeoutTurnMS
		if spec.TimeoutMatchMS > 0 {
			remaining := *timeLeft
			if remaining < 1 {
				remaining = 1 // match time already used up: a 1ms budget makes think() time out
			}
			if turnBudget == 0 || remaining < turnBudget {
				turnBudget = remaining
			}
		}

		moveStr, info, err := engine.Think(timeLeft, turnBudget, ply, firstMove, lastMove)
		firstMove = false
		if err != nil {
			reason, code := classifyEngineError(err)
			loserIsBlack := mover == board.Black
			wld := 0
			if loserIsBlack {
				wld = toWLDForA(board.White)
			} else {
				wld = toWLDForA(board.Black)
			}
			return Result{WLD: wld, Reason: reason, Code: code, Position: pos, Infos: infos}, nil
		}

		x, y, ok := protocol.ParseMove(moveStr)
		if !ok || !pos.InBounds(x, y) || pos.IsOccupied(x, y) {
			loserIsBlack := mover == board.Black
			wld := 0
			if loserIsBlack {
				wld = toWLDForA(board.White)
			} else {
				wld = toWLDForA(board.Black)
			}
			return Result{WLD: wld, Reason: "illegal", Code: tourerr.CodeIllegalMove, Position: pos, Infos: infos}, nil
		}

		pos.Apply(x, y, mover)
		lastMove = moveStr
		ply++
		infos = append(infos, info)
		hist.push(mover, info.Score)

		if over, winner := d.rule.Terminal(pos, board.Move{X: x, Y: y, Color: mover}); over {
			return Result{WLD: toWLDForA(winner), Reason: terminalReason(winner), Position: pos, Infos: infos}, nil
		}

		if reason, drawn := d.checkAdjudication(&hist, mover, info.Score, ply); drawn {
			return Result{WLD: toWLDForA(board.Empty), Reason: reason, Position: pos, Infos: infos}, nil
		}
		if wld, reason, resigned := d.checkResign(&hist, mover, toWLDForA); resigned {
			return Result{WLD: wld, Reason: reason, Position: pos, Infos: infos}, nil
		}

		*timeLeft += spec.IncrementMS
	}
}

func terminalReason(winner board.Color) string {
	if winner == board.Empty {
		return "board_full"
	}
	return "normal"
}

func (d *Driver) checkAdjudication(h *scoreHistory, _ board.Color, _ int, ply int) (string, bool) {
	if d.adj.ForceDrawAfter > 0 && ply >= d.adj.ForceDrawAfter {
		return "force_draw", true
	}
	if d.adj.DrawCount > 0 &&
		trailingAllAbsLE(h.blackScores, d.adj.DrawCount, d.adj.DrawScore) &&
		trailingAllAbsLE(h.whiteScores, d.adj.DrawCount, d.adj.DrawScore) {
		return "adjudicated_draw", true
	}
	return "", false
}

func (d *Driver) checkResign(h *scoreHistory, mover board.Color, toWLDForA func(board.Color) int) (int, string, bool) {
	if d.adj.ResignCount <= 0 {
		return 0, "", false
	}
	var scores []int
	var resigningColor board.Color
	if mover == board.Black {
		scores, resigningColor = h.blackScores, board.Black
	} else {
		scores, resigningColor = h.whiteScores, board.White
	}
	if trailingAllLE(scores, d.adj.ResignCount, -d.adj.ResignScore) {
		winner := resigningColor.Opponent()
		return toWLDForA(winner), "resign", true
	}
	return 0, "", false
}

// applyOpening applies each opening move alternating BLACK/WHITE
// starting with BLACK, failing with IllegalOpening on any off-board or
// duplicate placement, and sends the position to both engines via
// BOARD/DONE (spec.md §4.3).
func (d *Driver) applyOpening(pos *board.Position, op opening.Opening, a, b Engine) error {
	color := board.Black
	for _, mv := range op.Moves {
		if !pos.InBounds(mv.X, mv.Y) || pos.IsOccupied(mv.X, mv.Y) {
			return tourerr.IllegalOpening(fmt.Sprintf("opening move (%d,%d) is off-board or occupied", mv.X, mv.Y))
		}
		pos.Apply(mv.X, mv.Y, color)
		color = color.Opponent()
	}
	if len(op.Moves) == 0 {
		return nil
	}
	cmd := renderBoardCommand(pos)
	for _, e := range []Engine{a, b} {
		if err := e.Writeln(cmd); err != nil {
			return err
		}
	}
	return nil
}

func renderBoardCommand(pos *board.Position) string {
	s := "BOARD\n"
	for _, mv := range pos.History {
		who := 1
		if mv.Color == board.White {
			who = 2
		}
		s += fmt.Sprintf("%d,%d,%d\n", mv.X, mv.Y, who)
	}
	s += "DONE"
	return s
}

func classifyEngineError(err error) (reason string, code tourerr.Code) {
	var te *tourerr.TournamentError
	if e, ok := err.(*tourerr.TournamentError); ok {
		te = e
	}
	if te == nil {
		return "crash", tourerr.CodeCrash
	}
	switch te.Code {
	case tourerr.CodeTimeout:
		return "timeout", te.Code
	case tourerr.CodeCrash, tourerr.CodePipeBroken:
		return "crash", te.Code
	case tourerr.CodeProtocolViolation:
		return "error", te.Code
	default:
		return "crash", te.Code
	}
}
