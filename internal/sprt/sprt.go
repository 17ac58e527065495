// Package sprt implements a Sequential Probability Ratio Test over
// trinomial (win/loss/draw) outcomes, used to stop a tournament early
// once one engine is significantly stronger or weaker than the other at
// preselected elo thresholds. Spec.md §9 leaves the exact formula
// unstated ("any standard two-proportion LLR with trinomial outcomes is
// acceptable"); this implements the standard log-likelihood-ratio test
// used by chess/gomoku tournament managers (e.g. cutechess-cli, GTour).
package sprt

import "math"

// Params are the SPRT configuration values from spec.md §3.
type Params struct {
	Elo0, Elo1   float64
	Alpha, Beta  float64
}

// Test tracks the running LLR for one pair.
type Test struct {
	params Params
	llr    float64
	lower  float64
	upper  float64
}

// New builds a Test with the Wald decision boundaries derived from
// alpha/beta.
func New(p Params) *Test {
	return &Test{
		params: p,
		lower:  math.Log(p.Beta / (1 - p.Alpha)),
		upper:  math.Log((1 - p.Beta) / p.Alpha),
	}
}

// eloToScore converts an elo difference to an expected score via the
// standard logistic model.
func eloToScore(elo float64) float64 {
	return 1 / (1 + math.Pow(10, -elo/400))
}

// Update folds one more game's WLD outcome (engine-a's perspective: 0 =
// loss, 1 = draw, 2 = win) into the running LLR using the trinomial
// log-likelihood ratio between the elo1 and elo0 hypotheses.
func (t *Test) Update(wld int) {
	p0 := eloToScore(t.params.Elo0)
	p1 := eloToScore(t.params.Elo1)

	// Map the expected score under each hypothesis to win/draw/loss
	// probabilities via a fixed draw rate model: the draw probability is
	// the constant 0.5 for both hypotheses, so only the decisive-result
	// mass shifts.
	drawRate := 0.5
	w0, d0, l0 := trinomial(p0, drawRate)
	w1, d1, l1 := trinomial(p1, drawRate)

	var num, den float64
	switch wld {
	case 2:
		num, den = w1, w0
	case 1:
		num, den = d1, d0
	default:
		num, den = l1, l0
	}
	if den <= 0 {
		den = 1e-9
	}
	if num <= 0 {
		num = 1e-9
	}
	t.llr += math.Log(num / den)
}

// trinomial derives win/draw/loss probabilities from an expected score
// and a draw-rate parameter, splitting the non-draw mass 1-drawRate
// between win and loss in the ratio score : 1-score.
func trinomial(score, drawRate float64) (w, d, l float64) {
	d = drawRate
	remaining := 1 - d
	w = remaining * score
	l = remaining * (1 - score)
	return
}

// LLR returns the current log-likelihood ratio.
func (t *Test) LLR() float64 { return t.llr }

// Decision reports whether the test has crossed a boundary: "accept"
// (elo1, upper bound), "reject" (elo0, lower bound), or "" (continue).
func (t *Test) Decision() string {
	switch {
	case t.llr >= t.upper:
		return "accept"
	case t.llr <= t.lower:
		return "reject"
	default:
		return ""
	}
}

// Bounds exposes the Wald lower/upper LLR boundaries, mostly for tests.
func (t *Test) Bounds() (lower, upper float64) { return t.lower, t.upper }
