// Package grpcserver serves the live snapshot API. Requests and responses
// are raw frames (a 4-byte token request, 708-byte snapshot responses)
// carried by a pass-through codec over a hand-rolled service descriptor.
package grpcserver

import (
	"context"
	"encoding/binary"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mbo/codec"
	"mbo/hub"
)

// SnapshotSource is the live side of the engine the API reads from.
type SnapshotSource interface {
	Snapshot(token uint32) (*codec.BookSnapshot, bool)
	Tokens() []uint32
}

type Server struct {
	src SnapshotSource
	hub *hub.Hub[codec.BookSnapshot]
	log *slog.Logger
}

func NewServer(src SnapshotSource, h *hub.Hub[codec.BookSnapshot], log *slog.Logger) *Server {
	return &Server{src: src, hub: h, log: log}
}

// NewGRPCServer builds a grpc.Server wired for the raw-frame codec.
func NewGRPCServer() *grpc.Server {
	return grpc.NewServer(grpc.ForceServerCodec(rawCodec{}))
}

// Register attaches the BookFeed service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// -------------------- Handlers --------------------

func (s *Server) getSnapshot(token uint32) (Frame, error) {
	snap, ok := s.src.Snapshot(token)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no book for token %d", token)
	}
	out := make(Frame, codec.SnapshotSize)
	snap.Marshal(out)
	return out, nil
}

func (s *Server) streamSnapshots(token uint32, stream grpc.ServerStream) error {
	sub := s.hub.Subscribe(1024)
	defer s.hub.Unsubscribe(sub)
	s.log.Info("[gRPC] stream opened", "token", token)

	buf := make(Frame, codec.SnapshotSize)
	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case snap, ok := <-sub.C():
			if !ok {
				return nil
			}
			if token != 0 && snap.Token != token {
				continue
			}
			snap.Marshal(buf)
			if err := stream.SendMsg(&buf); err != nil {
				return err
			}
		}
	}
}

// -------------------- Service descriptor --------------------

func decodeTokenRequest(dec func(interface{}) error) (uint32, error) {
	var req Frame
	if err := dec(&req); err != nil {
		return 0, err
	}
	if len(req) != 4 {
		return 0, status.Error(codes.InvalidArgument, "token request must be 4 bytes")
	}
	return binary.LittleEndian.Uint32(req), nil
}

func getSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	token, err := decodeTokenRequest(dec)
	if err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		frame, err := srv.(*Server).getSnapshot(token)
		if err != nil {
			return nil, err
		}
		return &frame, nil
	}
	if interceptor == nil {
		return handler(ctx, token)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/mbo.BookFeed/GetSnapshot"}
	return interceptor(ctx, token, info, handler)
}

func streamSnapshotsHandler(srv interface{}, stream grpc.ServerStream) error {
	var req Frame
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	if len(req) != 4 {
		return status.Error(codes.InvalidArgument, "token request must be 4 bytes")
	}
	token := binary.LittleEndian.Uint32(req)
	return srv.(*Server).streamSnapshots(token, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "mbo.BookFeed",
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamSnapshots", Handler: streamSnapshotsHandler, ServerStreams: true},
	},
	Metadata: "mbo raw frames",
}
