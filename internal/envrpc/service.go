package envrpc

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "aif.environment.v1.Environment"

const (
	describeMethod = "/" + ServiceName + "/Describe"
	emitMethod     = "/" + ServiceName + "/Emit"
	advanceMethod  = "/" + ServiceName + "/Advance"
)

// Message fields. Every request and response is a google.protobuf.Struct whose values
// are lists of integral numbers.
const (
	fieldState       = "state"
	fieldAction      = "action"
	fieldObservation = "observation"
	fieldNumStates   = "num_states"
	fieldNumObs      = "num_obs"
	fieldNumControls = "num_controls"
)

// EnvironmentServer is the server-side API of the environment service.
type EnvironmentServer interface {
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Emit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Advance(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// EnvironmentClient is the client-side API of the environment service.
type EnvironmentClient interface {
	Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Emit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Advance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// ServiceDesc describes the environment service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnvironmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Describe", Handler: unaryHandler(describeMethod, EnvironmentServer.Describe)},
		{MethodName: "Emit", Handler: unaryHandler(emitMethod, EnvironmentServer.Emit)},
		{MethodName: "Advance", Handler: unaryHandler(advanceMethod, EnvironmentServer.Advance)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aif/environment/v1/environment.proto",
}

// RegisterEnvironmentServer attaches srv to s.
func RegisterEnvironmentServer(s grpc.ServiceRegistrar, srv EnvironmentServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(method string, call func(EnvironmentServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EnvironmentServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EnvironmentServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type environmentClient struct {
	cc grpc.ClientConnInterface
}

// NewEnvironmentClient returns a client stub bound to cc.
func NewEnvironmentClient(cc grpc.ClientConnInterface) EnvironmentClient {
	return &environmentClient{cc: cc}
}

func (c *environmentClient) Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, describeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *environmentClient) Emit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, emitMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *environmentClient) Advance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, advanceMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion service

// #region encoding
func intsValue(v []int) *structpb.Value {
	vals := make([]*structpb.Value, len(v))
	for i, x := range v {
		vals[i] = structpb.NewNumberValue(float64(x))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func message(fields map[string][]int) *structpb.Struct {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		out.Fields[k] = intsValue(v)
	}
	return out
}

// ints reads field key of msg as a list of non-negative integers.
func ints(msg *structpb.Struct, key string) ([]int, error) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("field %q is not a list", key)
	}
	out := make([]int, len(list.GetValues()))
	for i, x := range list.GetValues() {
		n, ok := x.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("field %q entry %d is not a number", key, i)
		}
		f := n.NumberValue
		if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
			return nil, fmt.Errorf("field %q entry %d is not an index: %g", key, i, f)
		}
		out[i] = int(f)
	}
	return out, nil
}

// #endregion encoding
