package visualiser

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "asteroidview.v1.SceneStream"

// SubscribeMethod is the full method path of the streaming RPC.
const SubscribeMethod = "/" + ServiceName + "/Subscribe"

// SceneStreamServer is the server API for the SceneStream service.
type SceneStreamServer interface {
	Subscribe(*structpb.Struct, SceneStreamSubscribeServer) error
}

// SceneStreamSubscribeServer is the server side of a Subscribe stream.
type SceneStreamSubscribeServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type sceneStreamSubscribeServer struct {
	grpc.ServerStream
}

func (x *sceneStreamSubscribeServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SceneStreamServer).Subscribe(m, &sceneStreamSubscribeServer{stream})
}

// SceneStreamServiceDesc describes the SceneStream service. Messages are
// google.protobuf.Struct values, so no generated stubs are needed.
var SceneStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SceneStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "asteroidview/v1/scene_stream.proto",
}

// RegisterSceneStreamServer registers srv with s.
func RegisterSceneStreamServer(s grpc.ServiceRegistrar, srv SceneStreamServer) {
	s.RegisterService(&SceneStreamServiceDesc, srv)
}

// Client subscribes to a SceneStream server.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Subscription is an open Subscribe stream.
type Subscription struct {
	stream grpc.ClientStream
}

// Subscribe opens a stream with the given request.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest, opts ...grpc.CallOption) (*Subscription, error) {
	stream, err := c.cc.NewStream(ctx, &SceneStreamServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.SendMsg(req.Struct()); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close send: %w", err)
	}
	return &Subscription{stream: stream}, nil
}

// RecvStruct returns the next raw message.
func (s *Subscription) RecvStruct() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := s.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Recv returns the next decoded update. It returns io.EOF when the server
// ends the stream.
func (s *Subscription) Recv() (Update, error) {
	m, err := s.RecvStruct()
	if err != nil {
		return Update{}, err
	}
	return DecodeUpdate(m)
}
