package envrpc

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types
// Dimensions are the cardinalities reported by a remote environment.
type Dimensions struct {
	NumStates   []int
	NumObs      []int
	NumControls []int
}

// #endregion types

// #region client-struct
// Client is a remote environment. It satisfies the loop's Environment interface.
type Client struct {
	conn   *grpc.ClientConn
	client EnvironmentClient
}

// #endregion client-struct

// #region constructor
// NewClient connects to an environment server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewEnvironmentClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc EnvironmentClient) *Client {
	return &Client{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls
// Describe fetches the environment dimensions.
func (c *Client) Describe(ctx context.Context) (Dimensions, error) {
	resp, err := c.client.Describe(ctx, &structpb.Struct{})
	if err != nil {
		return Dimensions{}, fromStatus("describe", err)
	}
	var d Dimensions
	if d.NumStates, err = ints(resp, fieldNumStates); err != nil {
		return Dimensions{}, fmt.Errorf("describe: %w", err)
	}
	if d.NumObs, err = ints(resp, fieldNumObs); err != nil {
		return Dimensions{}, fmt.Errorf("describe: %w", err)
	}
	if d.NumControls, err = ints(resp, fieldNumControls); err != nil {
		return Dimensions{}, fmt.Errorf("describe: %w", err)
	}
	return d, nil
}

// Emit asks the remote process for an observation of state.
func (c *Client) Emit(ctx context.Context, state []int) ([]int, error) {
	resp, err := c.client.Emit(ctx, message(map[string][]int{fieldState: state}))
	if err != nil {
		return nil, fromStatus("emit", err)
	}
	obs, err := ints(resp, fieldObservation)
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	return obs, nil
}

// Advance asks the remote process for the successor of state under action.
func (c *Client) Advance(ctx context.Context, state, action []int) ([]int, error) {
	resp, err := c.client.Advance(ctx, message(map[string][]int{fieldState: state, fieldAction: action}))
	if err != nil {
		return nil, fromStatus("advance", err)
	}
	next, err := ints(resp, fieldState)
	if err != nil {
		return nil, fmt.Errorf("advance: %w", err)
	}
	return next, nil
}

// fromStatus restores local sentinels for invalid-argument replies.
func fromStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s rpc: %w", op, err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%s rpc: %w: %s", op, tensor.ErrShapeMismatch, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%s rpc: %w", op, context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s rpc: %w", op, context.DeadlineExceeded)
	default:
		return fmt.Errorf("%s rpc: %w", op, err)
	}
}

// #endregion calls
