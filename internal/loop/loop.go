package loop

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// #region options
type options struct {
	recorder Recorder
	logger   *zap.Logger
}

// Option configures Run.
type Option func(*options)

// WithRecorder persists every committed step.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets the run logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// #endregion options

// #region run
// Run drives steps iterations of observe, infer, plan, act and environment step, each
// stage consuming the complete output of the previous one. The first error aborts the
// run; the history up to the failed step is returned alongside it.
func Run(ctx context.Context, ag Stepper, world Environment, initial []int, steps int, opts ...Option) (*History, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	h := &History{}
	state := append([]int(nil), initial...)
	for t := 0; t < steps; t++ {
		if err := ctx.Err(); err != nil {
			return h, err
		}

		obs, err := world.Emit(ctx, state)
		if err != nil {
			return h, fmt.Errorf("step %d: emit: %w", t, err)
		}
		res, err := ag.Step(ctx, obs)
		if err != nil {
			return h, err
		}
		if o.recorder != nil {
			if err := o.recorder.Record(ctx, res, state); err != nil {
				return h, fmt.Errorf("step %d: record: %w", t, err)
			}
		}
		h.append(state, res)

		next, err := world.Advance(ctx, state, res.Action)
		if err != nil {
			return h, fmt.Errorf("step %d: advance: %w", t, err)
		}
		o.logger.Debug("environment advanced",
			zap.Int("step", t),
			zap.Ints("state", state),
			zap.Ints("next", next),
		)
		state = next
	}
	o.logger.Info("run complete", zap.Int("steps", h.Len()))
	return h, nil
}

// #endregion run
