// Package store implements the persistence layer: favorites and the
// history of discovered servers survive restarts in a SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/scout-project/scout/internal/registry"
)

// Store wraps a SQLite database with thread-safe access.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the database at the given path and migrates the
// schema.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// SQLite doesn't support concurrent writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("database opened")
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS favorites (
		address TEXT PRIMARY KEY,
		name    TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS server_history (
		address      TEXT PRIMARY KEY,
		name         TEXT NOT NULL DEFAULT '',
		game_type    TEXT NOT NULL DEFAULT '',
		mission_type TEXT NOT NULL DEFAULT '',
		ping         INTEGER NOT NULL DEFAULT 0,
		num_players  INTEGER NOT NULL DEFAULT 0,
		max_players  INTEGER NOT NULL DEFAULT 0,
		last_seen    INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Favorite is one saved server.
type Favorite struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Favorites returns the saved favorites.
func (s *Store) Favorites() ([]Favorite, error) {
	rows, err := s.db.Query("SELECT address, name FROM favorites ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.Address, &f.Name); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AddFavorite saves or renames a favorite.
func (s *Store) AddFavorite(f Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT INTO favorites (address, name) VALUES (?, ?) "+
			"ON CONFLICT(address) DO UPDATE SET name=excluded.name",
		f.Address, f.Name)
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	return nil
}

// RemoveFavorite deletes a favorite by address.
func (s *Store) RemoveFavorite(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM favorites WHERE address = ?", address)
	return err
}

// FavoriteLines renders the favorites in the config-store line format
// ("<name>\t<address>") the query engine consumes.
func (s *Store) FavoriteLines() []string {
	favs, err := s.Favorites()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load favorites")
		return nil
	}
	lines := make([]string, 0, len(favs))
	for _, f := range favs {
		lines = append(lines, f.Name+"\t"+f.Address)
	}
	return lines
}

// RecordServer upserts a discovered server into the history.
func (s *Store) RecordServer(si *registry.ServerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO server_history
		 (address, name, game_type, mission_type, ping, num_players, max_players, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET
		   name=excluded.name, game_type=excluded.game_type,
		   mission_type=excluded.mission_type, ping=excluded.ping,
		   num_players=excluded.num_players, max_players=excluded.max_players,
		   last_seen=excluded.last_seen`,
		si.Address.String(), si.Name, si.GameType, si.MissionType,
		si.Ping, si.NumPlayers, si.MaxPlayers, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record server: %w", err)
	}
	return nil
}

// HistoryEntry is one remembered server.
type HistoryEntry struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	GameType    string `json:"game_type"`
	MissionType string `json:"mission_type"`
	Ping        uint32 `json:"ping"`
	NumPlayers  int    `json:"num_players"`
	MaxPlayers  int    `json:"max_players"`
	LastSeen    int64  `json:"last_seen"`
}

// History returns the remembered servers, most recently seen first.
func (s *Store) History(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT address, name, game_type, mission_type, ping, num_players, max_players, last_seen
		 FROM server_history ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query server history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Address, &e.Name, &e.GameType, &e.MissionType,
			&e.Ping, &e.NumPlayers, &e.MaxPlayers, &e.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune drops history entries not seen within the retention window.
func (s *Store) Prune(retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-retention).Unix()
	res, err := s.db.Exec("DELETE FROM server_history WHERE last_seen < ?", cutoff)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Debug().Int64("removed", n).Msg("pruned server history")
	}
	return nil
}
