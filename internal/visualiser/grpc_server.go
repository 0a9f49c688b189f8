package visualiser

import (
	"log"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Ensure Server implements the gRPC interface.
var _ SceneStreamServer = (*Server)(nil)

// Server implements the SceneStream gRPC service on top of a Publisher.
type Server struct {
	publisher *Publisher
}

// NewServer creates a new gRPC server.
func NewServer(publisher *Publisher) *Server {
	return &Server{publisher: publisher}
}

// Subscribe streams updates matching the request until the client goes away
// or the publisher stops.
func (s *Server) Subscribe(reqMsg *structpb.Struct, stream SceneStreamSubscribeServer) error {
	req, err := ParseSubscribeRequest(reqMsg)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid subscribe request: %v", err)
	}

	id := uuid.NewString()
	client, err := s.publisher.addClient(id, req)
	if err != nil {
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	defer s.publisher.removeClient(id)

	log.Printf("[gRPC] Subscribe started: client=%s frames=%v markers=%v", id, req.Frames, req.IncludeMarkers)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.publisher.stopCh:
			return nil
		case u := <-client.updates:
			msg, err := u.Struct()
			if err != nil {
				return status.Errorf(codes.Internal, "encode update %d: %v", u.Seq, err)
			}
			if err := stream.Send(msg); err != nil {
				log.Printf("[gRPC] Send error: %v", err)
				return err
			}
		}
	}
}
