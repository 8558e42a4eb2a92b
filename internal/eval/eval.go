package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// #region eval-harness
// EvalHarness computes per-step diagnostics after a step commits.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run scores one committed step. Sum deviations decide Passed; entropies, the winning
// policy mass and the free energy are informational.
func (h *EvalHarness) Run(in StepInput) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Belief entropy and normalization per factor
	for f, q := range in.Qs {
		dev := math.Abs(floats.Sum(q) - 1)
		devPass := dev <= h.config.MaxSumDeviation
		metrics = append(metrics, EvalMetric{
			Name:  fmt.Sprintf("qs_%d_sum_dev", f),
			Value: dev,
			Pass:  devPass,
		})
		if !devPass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("belief %d sum deviates by %g", f, dev))
		}

		ent := tensor.Entropy(q)
		metrics = append(metrics, EvalMetric{
			Name:  fmt.Sprintf("qs_%d_entropy", f),
			Value: ent,
			Pass:  ent <= h.config.EntropyBaseline,
		})
	}

	// 2. Policy posterior
	dev := math.Abs(floats.Sum(in.QPi) - 1)
	devPass := dev <= h.config.MaxSumDeviation
	metrics = append(metrics, EvalMetric{Name: "qpi_sum_dev", Value: dev, Pass: devPass})
	if !devPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("policy posterior sum deviates by %g", dev))
	}
	metrics = append(metrics, EvalMetric{Name: "qpi_entropy", Value: tensor.Entropy(in.QPi), Pass: true})
	if len(in.QPi) > 0 {
		metrics = append(metrics, EvalMetric{Name: "qpi_max", Value: floats.Max(in.QPi), Pass: true})
	}
	if len(in.G) > 0 {
		metrics = append(metrics, EvalMetric{Name: "efe_min", Value: floats.Min(in.G), Pass: true})
	}

	// 3. Free energy: informational
	metrics = append(metrics, EvalMetric{
		Name:  "free_energy",
		Value: in.FreeEnergy,
		Pass:  !math.IsNaN(in.FreeEnergy) && !math.IsInf(in.FreeEnergy, 0),
	})

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
