// Package opening implements the opening-book source interface from
// spec.md §6: yields positions as an ordered list of (x, y) pairs,
// 0-based, y measured from the top.
package opening

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Point is one pre-applied move in an opening, omitting color: color is
// implied by alternating placement starting with Black (spec.md §4.3).
type Point struct {
	X, Y int
}

// Opening is one opening position.
type Opening struct {
	Moves []Point
}

// Source yields openings on demand. next(idx, workerID) in spec.md §6.
// The second result of Next echoes the idx passed in; a Source does not
// track round numbers.
type Source interface {
	Next(idx int, workerID int) (op Opening, echoIdx int, err error)
	Len() int
}

// list is an in-memory Source loaded from a file or literal slice, with
// optional repeat-pairing (games 2k and 2k+1 share an opening).
type list struct {
	mu       sync.Mutex
	openings []Opening
	repeat   bool
}

// NewFromFile loads a plain-text opening book: one opening per line, as
// space-separated "x,y" pairs (e.g. "7,7 8,8"). An empty line is a
// zero-move opening (empty board, black moves first per spec.md §8
// boundary behavior).
func NewFromFile(path string, repeat bool) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open openings file: %w", err)
	}
	defer f.Close()

	var openings []Opening
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			openings = append(openings, Opening{})
			continue
		}
		op, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("parse opening line %q: %w", line, err)
		}
		openings = append(openings, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(openings) == 0 {
		openings = append(openings, Opening{})
	}
	return &list{openings: openings, repeat: repeat}, nil
}

// NewEmpty returns a Source that always yields the zero-move opening,
// used when no -openings flag is given.
func NewEmpty() Source {
	return &list{openings: []Opening{{}}}
}

// NewFromOpenings wraps a caller-supplied slice, e.g. for tests.
func NewFromOpenings(ops []Opening, repeat bool) Source {
	return &list{openings: ops, repeat: repeat}
}

func parseLine(line string) (Opening, error) {
	var op Opening
	for _, tok := range strings.Fields(line) {
		parts := strings.SplitN(tok, ",", 2)
		if len(parts) != 2 {
			return op, fmt.Errorf("bad point %q", tok)
		}
		x, err1 := strconv.Atoi(parts[0])
		y, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return op, fmt.Errorf("bad point %q", tok)
		}
		op.Moves = append(op.Moves, Point{X: x, Y: y})
	}
	return op, nil
}

func (l *list) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.openings)
}

// Next returns the opening for job index idx. When repeat is enabled,
// games 2k and 2k+1 draw from the same underlying opening slot k.
func (l *list) Next(idx int, _ int) (Opening, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.openings) == 0 {
		return Opening{}, 0, fmt.Errorf("no openings available")
	}
	slot := idx
	if l.repeat {
		slot = idx / 2
	}
	return l.openings[slot%len(l.openings)], idx, nil
}
