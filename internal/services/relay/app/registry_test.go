package server

import "testing"

func TestRegistryGetOrCreateReusesRoom(t *testing.T) {
	reg := newRegistry()
	first := reg.getOrCreate("en1", 3)
	second := reg.getOrCreate("en1", 3)
	if first != second {
		t.Fatal("expected the same room for the same world and guild")
	}
	other := reg.getOrCreate("en1", 4)
	if other == first {
		t.Fatal("expected a distinct room for a different guild")
	}
}

func TestRegistryReleaseIfEmptyPrunesBothLevels(t *testing.T) {
	reg := newRegistry()
	rm := reg.getOrCreate("en1", 3)
	c := &conn{player: 7}
	rm.add(c)

	// A populated room must survive release.
	reg.releaseIfEmpty("en1", 3)
	if _, ok := reg.lookup("en1", 3); !ok {
		t.Fatal("populated room should not be pruned")
	}

	if empty := rm.remove(c); !empty {
		t.Fatal("expected room to report empty after last removal")
	}
	reg.releaseIfEmpty("en1", 3)
	if _, ok := reg.lookup("en1", 3); ok {
		t.Fatal("empty room should be pruned")
	}
	if len(reg.worlds) != 0 {
		t.Fatal("empty world entry should be pruned")
	}
}

func TestRegistryReleaseIfEmptyKeepsSiblingGuilds(t *testing.T) {
	reg := newRegistry()
	emptied := reg.getOrCreate("en1", 3)
	kept := reg.getOrCreate("en1", 4)
	c := &conn{player: 7}
	kept.add(c)
	_ = emptied

	reg.releaseIfEmpty("en1", 3)
	if _, ok := reg.lookup("en1", 3); ok {
		t.Fatal("empty guild room should be pruned")
	}
	if _, ok := reg.lookup("en1", 4); !ok {
		t.Fatal("sibling guild room should survive")
	}
}

func TestRegistryReleaseIfEmptyUnknownPairIsNoop(t *testing.T) {
	reg := newRegistry()
	reg.releaseIfEmpty("nowhere", 99)
	if len(reg.worlds) != 0 {
		t.Fatal("release of unknown pair should not create entries")
	}
}

func TestRoomOthersExcludesSelf(t *testing.T) {
	rm := newRoom()
	a := &conn{player: 1}
	b := &conn{player: 2}
	rm.add(a)
	rm.add(b)

	others := rm.others(a)
	if len(others) != 1 || others[0] != b {
		t.Fatalf("others = %v, want only the peer", others)
	}
}

func TestRoomMemberSnapshotIncludesViewer(t *testing.T) {
	rm := newRoom()
	viewer := &conn{player: 1, name: "Ann", portrait: "p1", secret: strPtr("s1")}
	matching := &conn{player: 2, name: "Bob", portrait: "p2", secret: strPtr("s1")}
	stranger := &conn{player: 3, name: "Cid", portrait: "p3"}
	rm.add(viewer)
	rm.add(matching)
	rm.add(stranger)

	snapshot := rm.memberSnapshot(viewer)
	if len(snapshot) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(snapshot))
	}
	matchByPlayer := map[int64]bool{}
	for _, entry := range snapshot {
		matchByPlayer[entry.PlayerID] = entry.SecretsMatch
	}
	if !matchByPlayer[1] || !matchByPlayer[2] || matchByPlayer[3] {
		t.Fatalf("unexpected match flags: %v", matchByPlayer)
	}
}
