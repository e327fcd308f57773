package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"parkrep/core/internal/codec"
	"parkrep/core/internal/replay"
	"parkrep/core/internal/storage"
)

// Client calls a remote replay service.
type Client struct {
	conn   *grpc.ClientConn
	secret string
}

// Dial connects to target. Without extra options the connection is plaintext.
func Dial(target, secret string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn, secret: secret}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.secret == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, SharedSecretMetadataKey, c.secret)
}

func pathRequest(path string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"path": path})
}

// Inspect reads the header summary of a remote replay.
func (c *Client) Inspect(ctx context.Context, path string) (replay.Info, error) {
	req, err := pathRequest(path)
	if err != nil {
		return replay.Info{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), fullMethod("Inspect"), req, out); err != nil {
		return replay.Info{}, err
	}
	var info replay.Info
	if err := FromStruct(out, &info); err != nil {
		return replay.Info{}, fmt.Errorf("decode info: %w", err)
	}
	return info, nil
}

// List returns up to limit indexed replays, newest first.
func (c *Client) List(ctx context.Context, limit int) ([]storage.Entry, error) {
	req, err := structpb.NewStruct(map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), fullMethod("List"), req, out); err != nil {
		return nil, err
	}
	var list struct {
		Replays []storage.Entry `json:"replays"`
	}
	if err := FromStruct(out, &list); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return list.Replays, nil
}

// Watch calls fn for every notification until ctx ends or the server closes the
// stream. ready, when non-nil, is closed once the subscription is active.
func (c *Client) Watch(ctx context.Context, ready chan<- struct{}, fn func(replay.Notification)) error {
	stream, err := c.conn.NewStream(c.outgoing(ctx), &serviceDesc.Streams[0], fullMethod("Watch"))
	if err != nil {
		return err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return err
	}
	//1.- The server sends headers only after it has subscribed.
	if _, err := x.Header(); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	for {
		frame, err := x.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		var note replay.Notification
		if err := FromStruct(frame, &note); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		fn(note)
	}
}

// Fetch copies a remote replay file into w and reports the bytes written.
func (c *Client) Fetch(ctx context.Context, path string, w io.Writer) (int64, error) {
	req, err := pathRequest(path)
	if err != nil {
		return 0, err
	}
	stream, err := c.conn.NewStream(c.outgoing(ctx), &serviceDesc.Streams[1], fullMethod("Fetch"))
	if err != nil {
		return 0, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, wrapperspb.BytesValue]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return 0, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return 0, err
	}

	var (
		written    int64
		compressor codec.Compressor
	)
	for {
		chunk, err := x.Recv()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		//1.- Resolve the chunk codec from the headers once the first chunk arrives.
		if compressor == nil {
			md, err := x.Header()
			if err != nil {
				return written, err
			}
			values := md.Get(EncodingMetadataKey)
			if len(values) == 0 {
				return written, fmt.Errorf("fetch: missing %s header", EncodingMetadataKey)
			}
			var ok bool
			if compressor, ok = codec.ByName(values[0]); !ok {
				return written, fmt.Errorf("fetch: unsupported encoding %q", values[0])
			}
		}
		raw, err := compressor.Decompress(chunk.GetValue())
		if err != nil {
			return written, err
		}
		n, err := w.Write(raw)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}
