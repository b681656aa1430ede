package server

import (
	"net/http/httptest"
	"testing"
	"time"
)

func newRelayServerWithPingInterval(t *testing.T, interval time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandlerWithPingInterval(interval))
	t.Cleanup(srv.Close)
	return srv
}

func TestHeartbeatClosesSilentPeer(t *testing.T) {
	srv := newRelayServerWithPingInterval(t, 30*time.Millisecond)
	conn := dialWS(t, srv)
	// Swallow pings so the peer looks unresponsive.
	conn.SetPingHandler(func(string) error { return nil })

	joinRoom(t, conn, nil)

	got := expectFrameType(t, conn, "error")
	if got.Error != "Ping Timeout" {
		t.Fatalf("error text = %q, want %q", got.Error, "Ping Timeout")
	}
	expectClosed(t, conn)
}

func TestHeartbeatTimeoutTriggersLeaveCleanup(t *testing.T) {
	srv := newRelayServerWithPingInterval(t, 30*time.Millisecond)
	silent := dialWS(t, srv)
	silent.SetPingHandler(func(string) error { return nil })
	watcher := dialWS(t, srv)

	joinRoom(t, silent, nil)
	joinRoom(t, watcher, map[string]any{"player": 9, "connectionId": "fedcbafedcba"})

	// The watcher keeps reading, which answers its own pings, until the
	// silent peer is evicted and its leave is broadcast.
	for {
		got := readFrame(t, watcher)
		if got.Type == "leave" {
			if got.Player != 7 {
				t.Fatalf("leave player = %d, want 7", got.Player)
			}
			return
		}
	}
}

func TestHeartbeatKeepsResponsivePeerAlive(t *testing.T) {
	srv := newRelayServerWithPingInterval(t, 30*time.Millisecond)
	conn := dialWS(t, srv)
	joinRoom(t, conn, nil)

	frames := make(chan testFrame, 8)
	readErr := make(chan error, 1)
	go func() {
		for {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var got testFrame
			if err := conn.ReadJSON(&got); err != nil {
				readErr <- err
				return
			}
			frames <- got
		}
	}()

	// Stay quiet for several heartbeat periods; reading answers the pings.
	time.Sleep(150 * time.Millisecond)

	late := dialWS(t, srv)
	joinRoom(t, late, map[string]any{"player": 9, "connectionId": "fedcbafedcba"})

	select {
	case got := <-frames:
		if got.Type != "join" || got.Player != 9 {
			t.Fatalf("unexpected frame: %+v", got)
		}
	case err := <-readErr:
		t.Fatalf("connection dropped despite answering pings: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the join frame")
	}
}
