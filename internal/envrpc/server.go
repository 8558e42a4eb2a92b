package envrpc

import (
	"context"
	"errors"
	"net"

	"github.com/danielpatrickdp/aif-controller/internal/env"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server
// Server exposes an env.Process over gRPC. The hidden state travels with every request,
// so the server itself holds only the process and its sampler.
type Server struct {
	proc   *env.Process
	logger *zap.Logger
}

// NewServer wraps proc. A nil logger disables logging.
func NewServer(proc *env.Process, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{proc: proc, logger: logger}
}

// Describe reports the process dimensions.
func (s *Server) Describe(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return message(map[string][]int{
		fieldNumStates:   s.proc.NumStates(),
		fieldNumObs:      s.proc.NumObs(),
		fieldNumControls: s.proc.NumControls(),
	}), nil
}

// Emit samples an observation for the given state.
func (s *Server) Emit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	state, err := ints(in, fieldState)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	obs, err := s.proc.Emit(ctx, state)
	if err != nil {
		s.logger.Warn("emit failed", zap.Ints("state", state), zap.Error(err))
		return nil, toStatus(err)
	}
	return message(map[string][]int{fieldObservation: obs}), nil
}

// Advance samples the next state for the given state and action.
func (s *Server) Advance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	state, err := ints(in, fieldState)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	action, err := ints(in, fieldAction)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	next, err := s.proc.Advance(ctx, state, action)
	if err != nil {
		s.logger.Warn("advance failed", zap.Ints("state", state), zap.Ints("action", action), zap.Error(err))
		return nil, toStatus(err)
	}
	return message(map[string][]int{fieldState: next}), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, tensor.ErrShapeMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// #endregion server

// #region serve
// Serve runs a gRPC server for proc on lis until ctx is cancelled.
func Serve(ctx context.Context, lis net.Listener, proc *env.Process, logger *zap.Logger) error {
	srv := grpc.NewServer()
	RegisterEnvironmentServer(srv, NewServer(proc, logger))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			srv.GracefulStop()
		case <-done:
		}
	}()

	if logger != nil {
		logger.Info("environment server listening", zap.String("addr", lis.Addr().String()))
	}
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// #endregion serve
