package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// Large enough for a max-length message even when every character is a
// multibyte rune carried in escaped form.
const maxInboundFrameBytes = 16 * 1024

// relay owns the room registry and every connection's protocol state. All
// state transitions run under one mutex, so a broadcast triggered by one
// event is fully applied before the next event is processed and no peer can
// observe a torn room membership.
type relay struct {
	pingInterval time.Duration

	mu    sync.Mutex
	rooms *registry
}

func newRelay(pingInterval time.Duration) *relay {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &relay{
		pingInterval: pingInterval,
		rooms:        newRegistry(),
	}
}

// handleConn runs the read loop for one websocket connection and owns its
// lifecycle from accept to cleanup.
func (rl *relay) handleConn(ws *websocket.Conn) {
	ws.SetReadLimit(maxInboundFrameBytes)
	c := newConn(newWSPeer(ws))
	ws.SetPongHandler(func(string) error {
		rl.markAlive(c)
		return nil
	})

	hb := rl.startHeartbeat(c)
	defer rl.closeConn(c, hb)

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		// only text frames carry protocol data
		if kind != websocket.TextMessage {
			continue
		}
		rl.handleFrame(c, data)
	}
}

func (rl *relay) handleFrame(c *conn, data []byte) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	switch c.status {
	case statusNew:
		rl.handleSetup(c, data)
	case statusConnected:
		rl.handleClientPacket(c, data)
	}
}

// handleSetup validates the setup packet field by field, in a fixed order,
// and on success joins the room, replaces any prior device of the same
// player, and announces the arrival.
func (rl *relay) handleSetup(c *conn, data []byte) {
	var pkt setupPacket
	if err := json.Unmarshal(data, &pkt); err != nil {
		rl.rejectSetup(c, "packet", "Invalid setup packet.")
		return
	}

	world, ok := decodeString(pkt.World)
	if !ok || utf8.RuneCountInString(world) > maxWorldNameLength {
		rl.rejectSetup(c, "world", fmt.Sprintf(
			"Invalid setup packet. \"world\" needs to be a string with up to %d characters.", maxWorldNameLength))
		return
	}
	connectionID, ok := decodeString(pkt.ConnectionID)
	if !ok || utf8.RuneCountInString(connectionID) < minConnectionIDLength || utf8.RuneCountInString(connectionID) > maxConnectionIDLength {
		rl.rejectSetup(c, "connectionId", fmt.Sprintf(
			"Invalid setup packet. \"connectionId\" needs to be a string with %d to %d characters.",
			minConnectionIDLength, maxConnectionIDLength))
		return
	}
	guild, ok := decodeInt(pkt.Guild)
	if !ok || guild < 0 {
		rl.rejectSetup(c, "guild", "Invalid setup packet. \"guild\" needs to be an integer >= 0")
		return
	}
	player, ok := decodeInt(pkt.Player)
	if !ok || player < 0 {
		rl.rejectSetup(c, "player", "Invalid setup packet. \"player\" needs to be an integer >= 0")
		return
	}
	name, ok := decodeString(pkt.Name)
	if !ok || utf8.RuneCountInString(name) > maxNameLength {
		rl.rejectSetup(c, "name", fmt.Sprintf(
			"Invalid setup packet. \"name\" needs to be a string with up to %d characters.", maxNameLength))
		return
	}
	portrait, ok := decodeString(pkt.Portrait)
	if !ok || utf8.RuneCountInString(portrait) > maxPortraitLength {
		rl.rejectSetup(c, "portrait", fmt.Sprintf(
			"Invalid setup packet. \"portrait\" needs to be a string with up to %d characters.", maxPortraitLength))
		return
	}
	secret, ok := decodeOptionalString(pkt.Secret)
	if !ok || (secret != nil && utf8.RuneCountInString(*secret) > maxSecretLength) {
		rl.rejectSetup(c, "secret", fmt.Sprintf(
			"Invalid setup packet. \"secret\" needs to be null/undefined or a string with up to %d characters.", maxSecretLength))
		return
	}

	c.world = world
	c.guild = guild
	c.player = player
	c.name = name
	c.portrait = portrait
	c.connectionID = connectionID
	c.secret = secret

	rm := rl.rooms.getOrCreate(world, guild)
	rm.add(c)
	c.inRoom = true
	c.status = statusConnected

	// Replacement scan: force out any prior connection of this player. A
	// matching connectionId means the same device reconnected.
	switched := false
	reconnect := false
	var priorSecret *string
	for _, other := range rm.others(c) {
		if other.player != c.player {
			continue
		}
		_ = other.peer.writeFrame(disconnectFrame{Type: "disconnect", Reason: "new device connected"})
		other.status = statusDisconnected
		rm.remove(other)
		other.inRoom = false
		if other.connectionID == c.connectionID {
			reconnect = true
			priorSecret = other.secret
		}
		switched = true
		_ = other.peer.close()
	}

	if reconnect {
		// Same device came back: no join/switch noise, only secret deltas
		// relative to what the prior connection held.
		rl.notifySecretChange(rm, c, priorSecret)
	} else {
		kind := "join"
		if switched {
			kind = "switch"
		}
		now := unixMilli()
		for _, other := range rm.others(c) {
			_ = other.peer.writeFrame(presenceFrame{
				Type:         kind,
				Player:       c.player,
				Name:         c.name,
				Portrait:     c.portrait,
				Time:         now,
				SecretsMatch: secretsMatch(c, other),
			})
		}
	}

	rl.sendMembers(rm, c)
}

func (rl *relay) rejectSetup(c *conn, field string, errText string) {
	log.Printf("relay: rejected setup packet, field %q", field)
	c.status = statusError
	_ = c.peer.writeFrame(errorFrame{Type: "error", Error: errText})
	_ = c.peer.close()
}

// handleClientPacket applies a steady-state frame. A secret update and a chat
// message may arrive in the same frame; the secret updates first. Malformed
// fields void themselves only, never the connection.
func (rl *relay) handleClientPacket(c *conn, data []byte) {
	var pkt clientPacket
	if err := json.Unmarshal(data, &pkt); err != nil {
		return
	}

	rm, _ := rl.rooms.lookup(c.world, c.guild)
	if !c.inRoom {
		rm = nil
	}

	if len(pkt.Secret) > 0 {
		if secret, ok := decodeNullableString(pkt.Secret); ok && (secret == nil || utf8.RuneCountInString(*secret) <= maxSecretLength) {
			oldSecret := c.secret
			c.secret = secret
			rl.sendMembers(rm, c)
			if rm != nil {
				rl.notifySecretChange(rm, c, oldSecret)
			}
		}
	}

	if len(pkt.Message) > 0 {
		message, ok := decodeString(pkt.Message)
		secretOnly, boolOK := decodeOptionalBool(pkt.SecretOnly)
		if ok && boolOK && utf8.RuneCountInString(message) <= maxMessageLength && rm != nil {
			rm.broadcastOthers(c, messageFrame{
				Type:       "message",
				Message:    message,
				From:       c.player,
				Time:       unixMilli(),
				SecretOnly: secretOnly,
			}, secretOnly)
		}
	}
}

// closeConn runs the close path exactly once per connection: stop the
// heartbeat, broadcast leave if the member was still connected, remove it
// from its room, and prune empty registry entries. A connection already
// removed by a replacement scan is no longer in a room, so nothing repeats.
func (rl *relay) closeConn(c *conn, hb *heartbeat) {
	hb.stop()
	_ = c.peer.close()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !c.inRoom {
		return
	}
	rm, ok := rl.rooms.lookup(c.world, c.guild)
	if !ok {
		c.inRoom = false
		return
	}
	if c.status == statusConnected {
		rm.broadcastOthers(c, leaveFrame{Type: "leave", Player: c.player, Time: unixMilli()}, false)
	}
	rm.remove(c)
	c.inRoom = false
	rl.rooms.releaseIfEmpty(c.world, c.guild)
}

func (rl *relay) sendMembers(rm *room, c *conn) {
	members := []memberEntry{}
	if rm != nil {
		members = rm.memberSnapshot(c)
	}
	_ = c.peer.writeFrame(membersFrame{Type: "members", Members: members})
}

func (rl *relay) notifySecretChange(rm *room, c *conn, oldSecret *string) {
	for _, other := range affectedBySecretChange(c, oldSecret, rm.others(c)) {
		_ = other.peer.writeFrame(secretChangeFrame{
			Type:         "secretChange",
			Player:       c.player,
			SecretsMatch: secretsMatch(c, other),
		})
	}
}
