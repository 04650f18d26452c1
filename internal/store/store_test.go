package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/registry"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scout.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFavoritesRoundTrip(t *testing.T) {
	s := openTemp(t)

	if err := s.AddFavorite(Favorite{Address: "IP:10.0.0.1:28000", Name: "Alpha"}); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if err := s.AddFavorite(Favorite{Address: "IP:10.0.0.2:28000", Name: "Beta"}); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	// Rename on conflict.
	if err := s.AddFavorite(Favorite{Address: "IP:10.0.0.1:28000", Name: "Alpha Prime"}); err != nil {
		t.Fatalf("AddFavorite rename: %v", err)
	}

	favs, err := s.Favorites()
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if len(favs) != 2 {
		t.Fatalf("favorites = %d, want 2", len(favs))
	}

	lines := s.FavoriteLines()
	found := false
	for _, line := range lines {
		if line == "Alpha Prime\tIP:10.0.0.1:28000" {
			found = true
		}
	}
	if !found {
		t.Errorf("FavoriteLines = %v", lines)
	}

	if err := s.RemoveFavorite("IP:10.0.0.1:28000"); err != nil {
		t.Fatalf("RemoveFavorite: %v", err)
	}
	favs, _ = s.Favorites()
	if len(favs) != 1 || favs[0].Name != "Beta" {
		t.Errorf("favorites after remove = %v", favs)
	}
}

func TestServerHistory(t *testing.T) {
	s := openTemp(t)

	si := &registry.ServerInfo{
		Address:     netaddr.Addr{IP: [4]byte{192, 168, 1, 2}, Port: 28000},
		Name:        "History Server",
		GameType:    "multiplayer",
		MissionType: "ctf",
		Ping:        42,
		NumPlayers:  3,
		MaxPlayers:  16,
	}
	if err := s.RecordServer(si); err != nil {
		t.Fatalf("RecordServer: %v", err)
	}
	// Upsert on the same address.
	si.Ping = 55
	if err := s.RecordServer(si); err != nil {
		t.Fatalf("RecordServer upsert: %v", err)
	}

	entries, err := s.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history = %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Name != "History Server" || e.Ping != 55 || e.NumPlayers != 3 {
		t.Errorf("entry = %+v", e)
	}
	if e.Address != si.Address.String() {
		t.Errorf("address = %q", e.Address)
	}
}

func TestPrune(t *testing.T) {
	s := openTemp(t)
	si := &registry.ServerInfo{
		Address: netaddr.Addr{IP: [4]byte{192, 168, 1, 3}, Port: 28000},
		Name:    "Old",
	}
	if err := s.RecordServer(si); err != nil {
		t.Fatalf("RecordServer: %v", err)
	}

	// A negative retention window puts the cutoff in the future, so
	// everything already recorded is pruned.
	if err := s.Prune(-time.Hour); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	entries, _ := s.History(10)
	if len(entries) != 0 {
		t.Errorf("history after prune = %d entries", len(entries))
	}
}
