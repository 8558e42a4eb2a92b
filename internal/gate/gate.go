package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// #region gate
// Gate decides whether a step's beliefs and action may be committed. Any veto is fatal
// for the run; there is no partial commit.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks hard vetoes first, then scores how decisive the step was.
func (g *Gate) Evaluate(p Proposal) GateDecision {
	var vetoes []VetoSignal

	// 1. Beliefs: one distribution per factor
	if len(p.Qs) != len(p.NumStates) {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoShape,
			Reason: fmt.Sprintf("%d belief vectors for %d factors", len(p.Qs), len(p.NumStates)),
		})
	} else {
		for f, q := range p.Qs {
			if len(q) != p.NumStates[f] {
				vetoes = append(vetoes, VetoSignal{
					Type:   VetoShape,
					Reason: fmt.Sprintf("belief %d has %d entries, factor has %d states", f, len(q), p.NumStates[f]),
				})
				continue
			}
			vetoes = append(vetoes, g.checkDistribution(fmt.Sprintf("belief %d", f), q)...)
		}
	}

	// 2. Policy posterior
	vetoes = append(vetoes, g.checkDistribution("policy posterior", p.QPi)...)

	// 3. Action range
	if len(p.Action) != len(p.NumControls) {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoShape,
			Reason: fmt.Sprintf("action has %d entries for %d factors", len(p.Action), len(p.NumControls)),
		})
	} else {
		for f, u := range p.Action {
			if u < 0 || u >= p.NumControls[f] {
				vetoes = append(vetoes, VetoSignal{
					Type:   VetoActionRange,
					Reason: fmt.Sprintf("action %d for factor %d outside [0, %d)", u, f, p.NumControls[f]),
				})
			}
		}
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	}

	score := softScore(p)
	return GateDecision{
		Action:    "commit",
		Reason:    fmt.Sprintf("passed gate: soft_score=%.4f", score),
		SoftScore: score,
	}
}

func (g *Gate) checkDistribution(name string, p []float64) []VetoSignal {
	if len(p) == 0 {
		return []VetoSignal{{Type: VetoShape, Reason: name + " is empty"}}
	}
	if !tensor.IsFinite(p) {
		return []VetoSignal{{Type: VetoNumerical, Reason: name + " holds NaN or Inf"}}
	}
	for i, v := range p {
		if v < 0 {
			return []VetoSignal{{Type: VetoNormalization, Reason: fmt.Sprintf("%s has negative mass %g at %d", name, v, i)}}
		}
	}
	if s := floats.Sum(p); math.Abs(s-1) > g.config.Tolerance {
		return []VetoSignal{{Type: VetoNormalization, Reason: fmt.Sprintf("%s sums to %.12f", name, s)}}
	}
	return nil
}

// #endregion gate

// #region errors
// Err maps the first veto to the matching tensor sentinel, or returns nil on commit.
func (d GateDecision) Err() error {
	if !d.Vetoed || len(d.VetoSignals) == 0 {
		return nil
	}
	v := d.VetoSignals[0]
	switch v.Type {
	case VetoNumerical:
		return fmt.Errorf("%w: %s", tensor.ErrNumerical, v.Reason)
	case VetoNormalization:
		return fmt.Errorf("%w: %s", tensor.ErrNormalization, v.Reason)
	default:
		return fmt.Errorf("%w: %s", tensor.ErrShapeMismatch, v.Reason)
	}
}

// #endregion errors

// #region helpers
// softScore averages the normalized certainty 1 - H(p)/ln(n) of the policy posterior
// and of every factor's belief. Logged only.
func softScore(p Proposal) float64 {
	var sum float64
	var n int
	for _, q := range append([][]float64{p.QPi}, p.Qs...) {
		sum += certainty(q)
		n++
	}
	return sum / float64(n)
}

func certainty(p []float64) float64 {
	if len(p) < 2 {
		return 1
	}
	c := 1 - tensor.Entropy(p)/math.Log(float64(len(p)))
	return math.Max(0, math.Min(1, c))
}

// #endregion helpers
