package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type connStatus string

const (
	statusNew          connStatus = "new"
	statusConnected    connStatus = "connected"
	statusDisconnected connStatus = "disconnected"
	statusError        connStatus = "error"
)

// conn is the per-connection record. Identity fields are immutable once the
// setup packet has been accepted; secret may change on any later packet.
//
// Membership is tracked with inRoom plus the (world, guild) key rather than a
// room pointer, so registry pruning can never leave a dangling reference. A
// conn appears in its room's member set iff inRoom is true.
type conn struct {
	peer *wsPeer

	status connStatus

	world        string
	guild        int64
	player       int64
	connectionID string
	name         string
	portrait     string

	// secret is nil when the connection holds no secret. Secrets are opaque
	// and compared only for equality.
	secret *string

	inRoom bool

	// alive is cleared by each liveness probe and re-set by the peer's pong.
	alive bool
}

func newConn(peer *wsPeer) *conn {
	return &conn{
		peer:   peer,
		status: statusNew,
		alive:  true,
	}
}

const writeWait = 10 * time.Second

// wsPeer serializes outbound writes on one websocket connection. Fan-out
// writes from other connections' handlers go through the same mutex so frames
// never interleave.
type wsPeer struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func newWSPeer(ws *websocket.Conn) *wsPeer {
	return &wsPeer{ws: ws}
}

func (p *wsPeer) writeFrame(frame any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return p.ws.WriteJSON(frame)
}

func (p *wsPeer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (p *wsPeer) close() error {
	return p.ws.Close()
}
