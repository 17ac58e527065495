// Package protocol implements the Gomocup wire protocol line
// classification and Info parsing described in spec.md §4.1/§6.
package protocol

import (
	"strconv"
	"strings"
)

// LineKind classifies one line of engine output.
type LineKind int

const (
	KindMove LineKind = iota
	KindMessage
	KindInfo
	KindDebug
	KindError
	KindUnknown
	KindSuggest
	KindOK
	KindUnrecognized
)

// Info holds the tolerant, order-independent fields parsed from
// MESSAGE/INFO lines: score, depth, time, nodes. Missing tokens keep
// the caller's prior values (see MergeInfo).
type Info struct {
	Score int
	Depth int
	TimeMS int64
	Nodes  int64
}

// Classify maps a raw engine output line to a LineKind and returns the
// remainder of the line after any recognized prefix, case-insensitively,
// per the table in spec.md §4.1.
func Classify(line string) (LineKind, string) {
	trimmed := strings.TrimSpace(line)
	upper := strings.ToUpper(trimmed)

	switch {
	case upper == "OK":
		return KindOK, ""
	case strings.HasPrefix(upper, "MESSAGE "):
		return KindMessage, strings.TrimSpace(trimmed[len("MESSAGE "):])
	case strings.HasPrefix(upper, "INFO "):
		return KindInfo, strings.TrimSpace(trimmed[len("INFO "):])
	case strings.HasPrefix(upper, "DEBUG "):
		return KindDebug, strings.TrimSpace(trimmed[len("DEBUG "):])
	case strings.HasPrefix(upper, "ERROR "):
		return KindError, strings.TrimSpace(trimmed[len("ERROR "):])
	case strings.HasPrefix(upper, "UNKNOWN "):
		return KindUnknown, strings.TrimSpace(trimmed[len("UNKNOWN "):])
	case strings.HasPrefix(upper, "SUGGEST "):
		return KindSuggest, strings.TrimSpace(trimmed[len("SUGGEST "):])
	case isCoordinate(trimmed):
		return KindMove, trimmed
	default:
		return KindUnrecognized, trimmed
	}
}

func isCoordinate(s string) bool {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return false
	}
	_, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	_, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	return err1 == nil && err2 == nil
}

// ParseMove parses an "x,y" coordinate line. ok is false if the line is
// not a well-formed coordinate pair.
func ParseMove(s string) (x, y int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	xi, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	yi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return xi, yi, true
}

// ContainsInfoTokens reports whether a MESSAGE line's tail carries
// parseable info tokens (depth/ev/n/tm), per spec.md's classification
// table footnote.
func ContainsInfoTokens(tail string) bool {
	for _, key := range []string{"depth", "ev", "n", "tm"} {
		if hasToken(tail, key) {
			return true
		}
	}
	return false
}

func hasToken(tail, key string) bool {
	return strings.Contains(strings.ToLower(tail), key+"=")
}

// MergeInfo parses "key=value" tokens in any order out of tail and
// overlays them onto prev, leaving fields whose tokens are absent
// untouched (spec.md §4.1: "missing tokens keep prior values").
func MergeInfo(prev Info, tail string) Info {
	out := prev
	for _, tok := range strings.Fields(tail) {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.ToLower(kv[0]), kv[1]
		switch key {
		case "depth":
			if n, err := strconv.Atoi(val); err == nil {
				out.Depth = n
			}
		case "ev":
			if n, err := strconv.Atoi(val); err == nil {
				out.Score = n
			}
		case "tm":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				out.TimeMS = n
			}
		case "n":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				out.Nodes = n
			}
		}
	}
	return out
}
