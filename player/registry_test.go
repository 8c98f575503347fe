package player

import (
	"fmt"
	"strings"
	"testing"
)

func TestRegistry_RegisterAssignsPaletteRoundRobin(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < len(Palette)+2; i++ {
		p := r.Register(fmt.Sprintf("conn%d", i))
		want := Palette[i%len(Palette)]
		if p.Color != want {
			t.Errorf("player %d: expected color %s, got %s", i, want, p.Color)
		}
		if p.Score != 0 || !p.Online {
			t.Errorf("player %d: expected score 0 and online, got %+v", i, p)
		}
		if !strings.HasPrefix(p.Name, "Player") {
			t.Errorf("player %d: expected generated name, got %q", i, p.Name)
		}
	}
}

func TestRegistry_ColorCounterSurvivesPurge(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.Register("b")
	r.MarkOffline("a")
	r.MarkOffline("b")
	r.PurgeOffline()

	p := r.Register("c")
	if p.Color != Palette[2] {
		t.Errorf("Expected palette to keep cycling after purge, got %s want %s", p.Color, Palette[2])
	}
}

func TestRegistry_RegisterTwiceReturnsExisting(t *testing.T) {
	r := NewRegistry()
	first := r.Register("a")
	second := r.Register("a")

	if first.Color != second.Color || first.Name != second.Name {
		t.Errorf("Expected same record, got %+v and %+v", first, second)
	}
	if len(r.All()) != 1 {
		t.Errorf("Expected 1 player, got %d", len(r.All()))
	}
}

func TestRegistry_MarkOfflineKeepsRecord(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.AddScore("a", 3)

	if !r.MarkOffline("a") {
		t.Fatal("MarkOffline should report the player was online")
	}
	if r.MarkOffline("a") {
		t.Error("MarkOffline twice should report false")
	}

	p, ok := r.Get("a")
	if !ok {
		t.Fatal("offline player should still be retrievable")
	}
	if p.Online {
		t.Error("Expected player to be offline")
	}
	if p.Score != 3 {
		t.Errorf("Expected score to be kept, got %d", p.Score)
	}
	if _, live := r.LiveColor("a"); live {
		t.Error("offline player should not resolve as live")
	}
	if r.OnlineCount() != 0 {
		t.Errorf("Expected 0 online, got %d", r.OnlineCount())
	}
}

func TestRegistry_AddScoreFloorsAtZero(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.AddScore("a", 1)
	r.AddScore("a", -1)
	r.AddScore("a", -1)

	p, _ := r.Get("a")
	if p.Score != 0 {
		t.Errorf("Expected score floored at 0, got %d", p.Score)
	}

	// Unknown ids are ignored.
	r.AddScore("ghost", 5)
}

func TestRegistry_ResetScoresAndPurge(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.Register("b")
	r.AddScore("a", 4)
	r.AddScore("b", 2)
	r.MarkOffline("b")

	r.ResetScores()
	for _, p := range r.All() {
		if p.Score != 0 {
			t.Errorf("Expected %s score reset, got %d", p.ID, p.Score)
		}
	}

	if removed := r.PurgeOffline(); removed != 1 {
		t.Errorf("Expected 1 purged player, got %d", removed)
	}
	if _, ok := r.Get("b"); ok {
		t.Error("purged player should be gone")
	}
	if all := r.All(); len(all) != 1 || all[0].ID != "a" {
		t.Errorf("Expected only player a to remain, got %+v", all)
	}
}
