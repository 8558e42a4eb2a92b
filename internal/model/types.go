package model

import (
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// #region model
// Model bundles the agent's generative model. A[g] has shape (No[g], Ns[0], ..., Ns[Nf-1]),
// B[f] has shape (Ns[f], Ns[f], Nu[f]) with B[f][s', s, u] = P(s' | s, u), C[g] holds
// log-preferences over outcomes of modality g and D[f] is the prior over factor f.
type Model struct {
	NumStates   []int
	NumObs      []int
	NumControls []int

	A []*tensor.Tensor
	B []*tensor.Tensor
	C [][]float64
	D [][]float64

	// E is an optional prior over policies; nil means flat.
	E []float64

	// PA and PB are optional Dirichlet priors. They only matter when the matching
	// learning flag is set.
	PA     []*tensor.Dirichlet
	PB     []*tensor.Dirichlet
	LearnA bool
	LearnB bool

	trans [][]*mat.Dense
}

// #endregion model

// #region spec
// Spec lists the tensors used to build a Model.
type Spec struct {
	A []*tensor.Tensor
	B []*tensor.Tensor
	C [][]float64
	D [][]float64
	E []float64

	PA     []*tensor.Dirichlet
	PB     []*tensor.Dirichlet
	LearnA bool
	LearnB bool
}

// #endregion spec
