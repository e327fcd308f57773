package grpc

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"parkrep/core/internal/codec"
	"parkrep/core/internal/replay"
	"parkrep/core/internal/storage"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "parkrep.v1.ReplayService"
	// EncodingMetadataKey carries the chunk codec of a Fetch stream.
	EncodingMetadataKey = "x-parkrep-encoding"

	fetchChunkSize = 64 << 10
)

// ReplayServer is the server side of the replay service.
type ReplayServer interface {
	Inspect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
	Fetch(*structpb.Struct, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

// Option customises the service.
type Option func(*Service)

// WithCompressor overrides the codec used for Fetch chunks.
func WithCompressor(compressor codec.Compressor) Option {
	return func(s *Service) {
		if compressor != nil {
			s.compressor = compressor
		}
	}
}

// Service implements ReplayServer over a Library and a notification Feed.
type Service struct {
	library    Library
	feed       *Feed
	compressor codec.Compressor
}

// NewService wires the service to its library and feed. feed may be nil, in which
// case Watch is unavailable.
func NewService(library Library, feed *Feed, opts ...Option) *Service {
	service := &Service{library: library, feed: feed, compressor: codec.NewSnappy()}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// Register attaches the service to a gRPC server.
func Register(server *grpc.Server, service ReplayServer) {
	server.RegisterService(&serviceDesc, service)
}

func libraryError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, storage.ErrOutsideLibrary):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, replay.ErrVersionMismatch), errors.Is(err, replay.ErrCorrupt):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func pathArgument(req *structpb.Struct) (string, error) {
	path := req.GetFields()["path"].GetStringValue()
	if path == "" {
		return "", status.Error(codes.InvalidArgument, "path is required")
	}
	return path, nil
}

// Inspect returns the header summary of the replay named by the "path" field.
func (s *Service) Inspect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.library == nil {
		return nil, status.Error(codes.FailedPrecondition, "library unavailable")
	}
	path, err := pathArgument(req)
	if err != nil {
		return nil, err
	}
	info, err := s.library.Info(path)
	if err != nil {
		return nil, libraryError(err)
	}
	out, err := ToStruct(info)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode info: %v", err)
	}
	return out, nil
}

// List returns indexed replays under "replays", honouring an optional "limit".
func (s *Service) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.library == nil {
		return nil, status.Error(codes.FailedPrecondition, "library unavailable")
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())
	entries, err := s.library.Entries(limit)
	if err != nil {
		return nil, libraryError(err)
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	out, err := ToStruct(struct {
		Replays []storage.Entry `json:"replays"`
	}{entries})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode entries: %v", err)
	}
	return out, nil
}

// Watch streams replay notifications until the client goes away.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s == nil || s.feed == nil {
		return status.Error(codes.FailedPrecondition, "notifications unavailable")
	}
	ctx := stream.Context()
	//1.- Subscribe first so nothing raised after the headers is lost.
	notes, cancel := s.feed.Subscribe()
	defer cancel()
	if err := stream.SendHeader(metadata.Pairs("x-parkrep-watch", "ready")); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			//2.- Surface context cancellation so clients can retry.
			if errors.Is(ctx.Err(), context.Canceled) {
				return status.Error(codes.Canceled, "stream cancelled")
			}
			return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
		case note, ok := <-notes:
			if !ok {
				return nil
			}
			frame, err := ToStruct(note)
			if err != nil {
				return status.Errorf(codes.Internal, "encode notification: %v", err)
			}
			if err := stream.Send(frame); err != nil {
				return err
			}
		}
	}
}

// Fetch streams the raw replay file in compressed chunks. The chunk codec is
// announced in the EncodingMetadataKey header.
func (s *Service) Fetch(req *structpb.Struct, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	if s == nil || s.library == nil {
		return status.Error(codes.FailedPrecondition, "library unavailable")
	}
	path, err := pathArgument(req)
	if err != nil {
		return err
	}
	file, err := s.library.Open(path)
	if err != nil {
		return libraryError(err)
	}
	defer file.Close()

	if err := stream.SendHeader(metadata.Pairs(EncodingMetadataKey, s.compressor.Name())); err != nil {
		return err
	}
	buf := make([]byte, fetchChunkSize)
	for {
		//1.- Stop early when the client has gone away.
		if err := stream.Context().Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		n, readErr := io.ReadFull(file, buf)
		if n > 0 {
			chunk, err := s.compressor.Compress(buf[:n])
			if err != nil {
				return status.Errorf(codes.Internal, "compress chunk: %v", err)
			}
			if err := stream.Send(wrapperspb.Bytes(chunk)); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return nil
		}
		if readErr != nil {
			return status.Errorf(codes.Internal, "read replay: %v", readErr)
		}
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReplayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Inspect", Handler: inspectHandler},
		{MethodName: "List", Handler: listHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
		{StreamName: "Fetch", Handler: fetchHandler, ServerStreams: true},
	},
	Metadata: "parkrep/v1/replay.proto",
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func inspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayServer).Inspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Inspect")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplayServer).Inspect(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("List")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplayServer).List(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ReplayServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

func fetchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ReplayServer).Fetch(in, &grpc.GenericServerStream[structpb.Struct, wrapperspb.BytesValue]{ServerStream: stream})
}
