package grpc

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"parkrep/core/internal/config"
	"parkrep/core/internal/logging"
	"parkrep/core/internal/replay"
	"parkrep/core/internal/storage"
)

type fixture struct {
	dir    string
	lib    *storage.Library
	feed   *Feed
	client *Client
}

func startService(t *testing.T, cfg *config.Config, clientSecret string) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{dir: dir, lib: storage.NewLibrary(store, dir), feed: NewFeed(8)}
	opts, err := ServerOptions(cfg, logging.NewTestLogger())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(opts...)
	Register(server, NewService(f.lib, f.feed))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	f.client, err = Dial("passthrough:///bufnet", clientSecret, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.client.Close() })
	return f
}

func (f *fixture) writeReplay(t *testing.T, name string, park []byte) string {
	t.Helper()
	path := filepath.Join(f.dir, name+replay.FileExtension)
	rec := &replay.RecordData{
		Magic:          replay.Magic,
		Version:        replay.Version,
		NetworkVersion: "parkrep-ws/1",
		Name:           name,
		TimeRecorded:   1700000000,
		TickStart:      100,
		TickEnd:        160,
		Commands:       replay.NewCommandLog(),
		ParkData:       park,
	}
	require.NoError(t, replay.WriteFile(path, rec, 1))
	return path
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInspectAndList(t *testing.T) {
	f := startService(t, config.Default(), "")
	f.writeReplay(t, "opening-day", []byte("park"))
	_, err := f.lib.Scan()
	require.NoError(t, err)
	ctx := testContext(t)

	info, err := f.client.Inspect(ctx, "opening-day")
	require.NoError(t, err)
	assert.Equal(t, "opening-day", info.Name)
	assert.Equal(t, uint32(60), info.Ticks)
	assert.Equal(t, replay.Version, info.Version)
	assert.Equal(t, int64(1700000000), info.TimeRecorded.Unix())

	entries, err := f.client.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "parkrep-ws/1", entries[0].NetworkVersion)
	assert.Nil(t, entries[0].DesyncTick)
}

func TestInspectMapsErrors(t *testing.T) {
	f := startService(t, config.Default(), "")
	ctx := testContext(t)

	_, err := f.client.Inspect(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.client.Inspect(ctx, "../outside")
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = f.client.Inspect(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "junk.parkrep"), []byte("nope"), 0o644))
	_, err = f.client.Inspect(ctx, "junk")
	assert.Error(t, err)
}

func TestFetchCopiesReplayBytes(t *testing.T) {
	f := startService(t, config.Default(), "")
	park := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7}, 30000)
	path := f.writeReplay(t, "big", park)
	want, err := os.ReadFile(path)
	require.NoError(t, err)

	var got bytes.Buffer
	n, err := f.client.Fetch(testContext(t), "big", &got)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), n)
	assert.Equal(t, want, got.Bytes())

	_, err = f.client.Fetch(testContext(t), "absent", &got)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestWatchStreamsNotifications(t *testing.T) {
	f := startService(t, config.Default(), "")
	ctx, cancel := context.WithCancel(testContext(t))

	ready := make(chan struct{})
	received := make(chan replay.Notification, 4)
	done := make(chan error, 1)
	go func() {
		done <- f.client.Watch(ctx, ready, func(n replay.Notification) { received <- n })
	}()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watch ended early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch never became ready")
	}
	require.Equal(t, 1, f.feed.Subscribers())

	f.feed.Notify(replay.Notification{Kind: replay.NotifyPlaybackDesync, Message: "Replay out of sync", File: "a.parkrep", Tick: 77})
	select {
	case note := <-received:
		assert.Equal(t, replay.NotifyPlaybackDesync, note.Kind)
		assert.Equal(t, uint32(77), note.Tick)
	case <-time.After(5 * time.Second):
		t.Fatal("notification not delivered")
	}

	cancel()
	err := <-done
	assert.Equal(t, codes.Canceled, status.Code(err))
	require.Eventually(t, func() bool { return f.feed.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSharedSecretIsEnforced(t *testing.T) {
	cfg := config.Default()
	cfg.GRPCSharedSecret = "hunter2"

	denied := startService(t, cfg, "wrong")
	_, err := denied.client.Inspect(testContext(t), "x")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = denied.client.Fetch(testContext(t), "x", &bytes.Buffer{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	allowed := startService(t, cfg, "hunter2")
	allowed.writeReplay(t, "ok", []byte("park"))
	_, err = allowed.client.Inspect(testContext(t), "ok")
	require.NoError(t, err)
}

func TestServerOptionsRejectsMissingCertificates(t *testing.T) {
	cfg := config.Default()
	cfg.GRPCServerCertPath = filepath.Join(t.TempDir(), "server.pem")
	cfg.GRPCServerKeyPath = filepath.Join(t.TempDir(), "server.key")
	cfg.GRPCClientCAPath = filepath.Join(t.TempDir(), "ca.pem")
	_, err := ServerOptions(cfg, nil)
	require.Error(t, err)

	_, err = ServerOptions(nil, nil)
	require.Error(t, err)
}

func TestFeedDropsWhenSubscriberIsFull(t *testing.T) {
	feed := NewFeed(1)
	ch, cancel := feed.Subscribe()
	feed.Notify(replay.Notification{Tick: 1})
	feed.Notify(replay.Notification{Tick: 2})

	assert.Equal(t, uint32(1), (<-ch).Tick)
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, feed.Subscribers())
}
