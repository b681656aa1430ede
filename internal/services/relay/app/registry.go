package server

// room is the set of connections sharing one (world, guild) pair. Rooms are
// mutated only while the relay mutex is held.
type room struct {
	members map[*conn]struct{}
}

func newRoom() *room {
	return &room{members: make(map[*conn]struct{})}
}

func (r *room) add(c *conn) {
	r.members[c] = struct{}{}
}

// remove deletes c from the member set and reports whether the room is now
// empty, signalling the registry to prune it.
func (r *room) remove(c *conn) bool {
	delete(r.members, c)
	return len(r.members) == 0
}

// others returns every member except c. The slice is a snapshot, safe to
// mutate the member set while iterating it.
func (r *room) others(c *conn) []*conn {
	peers := make([]*conn, 0, len(r.members))
	for member := range r.members {
		if member != c {
			peers = append(peers, member)
		}
	}
	return peers
}

// broadcastOthers delivers frame to every member except sender. With
// secretOnly, delivery is restricted to members matching the sender's secret
// at send time. Delivery is fire-and-forget per member.
func (r *room) broadcastOthers(sender *conn, frame any, secretOnly bool) {
	for member := range r.members {
		if member == sender {
			continue
		}
		if secretOnly && !secretsMatch(sender, member) {
			continue
		}
		_ = member.peer.writeFrame(frame)
	}
}

// memberSnapshot lists every member, the viewer included, with each member's
// match status against the viewer's secret.
func (r *room) memberSnapshot(viewer *conn) []memberEntry {
	members := make([]memberEntry, 0, len(r.members))
	for member := range r.members {
		members = append(members, memberEntry{
			PlayerID:     member.player,
			Name:         member.name,
			Portrait:     member.portrait,
			SecretsMatch: secretsMatch(viewer, member),
		})
	}
	return members
}

// registry maps world name to guild number to room. Empty rooms and empty
// world entries are pruned eagerly so abandoned pairs cannot accumulate.
type registry struct {
	worlds map[string]map[int64]*room
}

func newRegistry() *registry {
	return &registry{worlds: make(map[string]map[int64]*room)}
}

func (g *registry) getOrCreate(world string, guild int64) *room {
	guilds, ok := g.worlds[world]
	if !ok {
		guilds = make(map[int64]*room)
		g.worlds[world] = guilds
	}
	rm, ok := guilds[guild]
	if !ok {
		rm = newRoom()
		guilds[guild] = rm
	}
	return rm
}

func (g *registry) lookup(world string, guild int64) (*room, bool) {
	guilds, ok := g.worlds[world]
	if !ok {
		return nil, false
	}
	rm, ok := guilds[guild]
	return rm, ok
}

// releaseIfEmpty drops the room for (world, guild) when it has no members,
// and drops the world entry when that was its last room.
func (g *registry) releaseIfEmpty(world string, guild int64) {
	guilds, ok := g.worlds[world]
	if !ok {
		return
	}
	rm, ok := guilds[guild]
	if !ok || len(rm.members) > 0 {
		return
	}
	delete(guilds, guild)
	if len(guilds) == 0 {
		delete(g.worlds, world)
	}
}
