package server

import (
	"sync"
	"time"
)

const defaultPingInterval = 60 * time.Second

// heartbeat drives the two-phase liveness check for one connection: each tick
// either evicts a peer that never answered the previous probe, or clears the
// alive flag and sends the next ping. A silent peer is therefore closed after
// at most two full intervals.
type heartbeat struct {
	stopCh chan struct{}
	once   sync.Once
}

func (h *heartbeat) stop() {
	h.once.Do(func() { close(h.stopCh) })
}

func (rl *relay) startHeartbeat(c *conn) *heartbeat {
	hb := &heartbeat{stopCh: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(rl.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hb.stopCh:
				return
			case <-ticker.C:
				if !rl.probe(c) {
					return
				}
			}
		}
	}()
	return hb
}

// probe runs one heartbeat tick and reports whether the connection survived.
func (rl *relay) probe(c *conn) bool {
	rl.mu.Lock()
	alive := c.alive
	c.alive = false
	rl.mu.Unlock()

	if !alive {
		_ = c.peer.writeFrame(errorFrame{Type: "error", Error: "Ping Timeout"})
		_ = c.peer.close()
		return false
	}
	_ = c.peer.ping()
	return true
}

func (rl *relay) markAlive(c *conn) {
	rl.mu.Lock()
	c.alive = true
	rl.mu.Unlock()
}
