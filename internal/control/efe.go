package control

import (
	"context"
	"fmt"
	"math"

	"github.com/danielpatrickdp/aif-controller/internal/model"
	"github.com/danielpatrickdp/aif-controller/internal/policy"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// #region planner
// planner holds the per-call tensors shared by every policy rollout.
type planner struct {
	m        *model.Model
	qs       [][]float64
	space    *policy.Space
	entropy  []*tensor.Tensor // H[A[g]] over the joint hidden state
	noveltyA []*tensor.Tensor // nil unless A novelty is active
	noveltyB []*tensor.Tensor // nil unless B novelty is active
}

func newPlanner(m *model.Model, qs [][]float64, space *policy.Space, cfg Config) *planner {
	p := &planner{m: m, qs: qs, space: space}
	p.entropy = make([]*tensor.Tensor, len(m.A))
	for g, a := range m.A {
		p.entropy[g] = conditionalEntropy(a)
	}
	if cfg.UseNovelty && m.LearnA && m.PA != nil {
		p.noveltyA = make([]*tensor.Tensor, len(m.PA))
		for g, d := range m.PA {
			p.noveltyA[g] = d.WeightedNorm()
		}
	}
	if cfg.UseNovelty && m.LearnB && m.PB != nil {
		p.noveltyB = make([]*tensor.Tensor, len(m.PB))
		for f, d := range m.PB {
			p.noveltyB[f] = d.WeightedNorm()
		}
	}
	return p
}

// conditionalEntropy returns -sum_o A[o, s] ln A[o, s] for every joint state s.
func conditionalEntropy(a *tensor.Tensor) *tensor.Tensor {
	shape := a.Shape()
	out, _ := tensor.New(shape[1:]...)
	dst := out.Data()
	inner := len(dst)
	src := a.Data()
	for o := 0; o < shape[0]; o++ {
		for j := 0; j < inner; j++ {
			if v := src[o*inner+j]; v > 0 {
				dst[j] -= v * math.Log(v+tensor.Floor)
			}
		}
	}
	return out
}

// #endregion planner

// #region rollout
// rollout forward-simulates one policy from the current beliefs and accumulates its
// risk, ambiguity and novelty over the horizon.
func (p *planner) rollout(pol policy.Policy) (terms, error) {
	var out terms
	qs := p.qs
	for t, action := range pol {
		next := p.m.PredictAll(action, qs)

		for g, a := range p.m.A {
			qoT, err := a.Dot(next, 1, -1)
			if err != nil {
				return terms{}, fmt.Errorf("step %d modality %d: %w", t, g, err)
			}
			qo := qoT.Data()

			for o, v := range qo {
				if v > 0 {
					out.risk += v * (math.Log(v+tensor.Floor) - p.m.C[g][o])
				}
			}

			amb, err := p.entropy[g].Contract(next)
			if err != nil {
				return terms{}, fmt.Errorf("step %d modality %d: %w", t, g, err)
			}
			out.ambiguity += amb

			if p.noveltyA != nil {
				w, err := p.noveltyA[g].Dot(next, 1, -1)
				if err != nil {
					return terms{}, fmt.Errorf("step %d modality %d: %w", t, g, err)
				}
				for o, v := range w.Data() {
					out.novelty -= qo[o] * v
				}
			}
		}

		if p.noveltyB != nil {
			for f, w := range p.noveltyB {
				u := tensor.OneHot(p.m.NumControls[f], action[f])
				wq, err := w.Dot([][]float64{qs[f], u}, 1, -1)
				if err != nil {
					return terms{}, fmt.Errorf("step %d factor %d: %w", t, f, err)
				}
				for s, v := range wq.Data() {
					out.novelty -= next[f][s] * v
				}
			}
		}

		qs = next
	}
	if math.IsNaN(out.efe()) || math.IsInf(out.efe(), 0) {
		return terms{}, fmt.Errorf("%w: expected free energy is %g", tensor.ErrNumerical, out.efe())
	}
	return out, nil
}

// #endregion rollout

// #region evaluate
// Evaluate scores every policy in space by expected free energy and returns the
// posterior over policies. qs is the current posterior over hidden states.
// With cfg.Workers > 1 policies are rolled out concurrently; each result lands at
// its policy index so the output does not depend on scheduling.
func Evaluate(ctx context.Context, m *model.Model, qs [][]float64, space *policy.Space, cfg Config) (Evaluation, error) {
	if space == nil || space.Len() == 0 {
		return Evaluation{}, ErrNoPolicies
	}
	if space.NumFactors() != m.NumFactors() {
		return Evaluation{}, fmt.Errorf("%w: policy space has %d factors, model has %d",
			tensor.ErrShapeMismatch, space.NumFactors(), m.NumFactors())
	}
	for f, nu := range space.NumControls() {
		if nu != m.NumControls[f] {
			return Evaluation{}, fmt.Errorf("%w: factor %d has %d controls in the policy space, %d in the model",
				tensor.ErrShapeMismatch, f, nu, m.NumControls[f])
		}
	}
	if len(qs) != m.NumFactors() {
		return Evaluation{}, fmt.Errorf("%w: %d belief vectors for %d factors", tensor.ErrShapeMismatch, len(qs), m.NumFactors())
	}
	for f, q := range qs {
		if len(q) != m.NumStates[f] {
			return Evaluation{}, fmt.Errorf("%w: belief %d has %d entries", tensor.ErrShapeMismatch, f, len(q))
		}
	}

	n := space.Len()
	p := newPlanner(m, qs, space, cfg)
	results := make([]terms, n)

	if cfg.Workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return Evaluation{}, err
			}
			r, err := p.rollout(space.At(i))
			if err != nil {
				return Evaluation{}, fmt.Errorf("policy %d: %w", i, err)
			}
			results[i] = r
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Workers)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				r, err := p.rollout(space.At(i))
				if err != nil {
					return fmt.Errorf("policy %d: %w", i, err)
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Evaluation{}, err
		}
	}

	ev := Evaluation{
		G:         make([]float64, n),
		Risk:      make([]float64, n),
		Ambiguity: make([]float64, n),
		Novelty:   make([]float64, n),
	}
	for i, r := range results {
		ev.G[i] = r.efe()
		ev.Risk[i] = r.risk
		ev.Ambiguity[i] = r.ambiguity
		ev.Novelty[i] = r.novelty
	}

	var err error
	if ev.QPi, err = PolicyPosterior(ev.G, cfg.Gamma, m.E); err != nil {
		return Evaluation{}, err
	}
	return ev, nil
}

// #endregion evaluate

// #region posterior
// PolicyPosterior returns softmax(-gamma*G + ln E). A nil E is treated as flat.
func PolicyPosterior(G []float64, gamma float64, E []float64) ([]float64, error) {
	if len(G) == 0 {
		return nil, ErrNoPolicies
	}
	if !(gamma > 0) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("%w: policy precision %g must be positive", tensor.ErrNumerical, gamma)
	}
	if E != nil && len(E) != len(G) {
		return nil, fmt.Errorf("%w: policy prior has %d entries for %d policies", tensor.ErrShapeMismatch, len(E), len(G))
	}
	if !tensor.IsFinite(G) {
		return nil, fmt.Errorf("%w: non-finite expected free energy", tensor.ErrNumerical)
	}
	// shifting by min G keeps the best logit at 0; the rest may underflow to -Inf
	best := floats.Min(G)
	logits := make([]float64, len(G))
	for i, g := range G {
		logits[i] = -gamma * (g - best)
	}
	if E != nil {
		for i, l := range tensor.LogFloor(E) {
			logits[i] += l
		}
	}
	for _, l := range logits {
		if math.IsNaN(l) || math.IsInf(l, 1) {
			return nil, fmt.Errorf("%w: invalid policy logit %g", tensor.ErrNumerical, l)
		}
	}
	q := tensor.Softmax(logits)
	if err := tensor.CheckDistribution(q, 1e-6); err != nil {
		return nil, fmt.Errorf("policy posterior: %w", err)
	}
	return q, nil
}

// #endregion posterior
