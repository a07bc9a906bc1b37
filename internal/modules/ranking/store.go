package ranking

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/truckboard/truckboard/internal/database"
)

// Store persists ranking snapshots to records.db so the server can serve
// rankings immediately after a restart, before the first feed fetch
// completes. Payloads are msgpack: snapshots are large and rewritten
// whole on every refresh.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a snapshot store.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("repository", "ranking_snapshots").Logger(),
	}
}

// SaveAll replaces the persisted snapshot set with the given generation.
// Stale keys from previous generations are removed in the same
// transaction, mirroring the cache's wholesale swap.
func (s *Store) SaveAll(snapshots map[CacheKey]*Snapshot) error {
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM ranking_snapshots"); err != nil {
			return fmt.Errorf("failed to clear stale snapshots: %w", err)
		}

		now := time.Now().Unix()
		for key, snapshot := range snapshots {
			payload, err := msgpack.Marshal(snapshot)
			if err != nil {
				return fmt.Errorf("failed to encode snapshot %s: %w", key, err)
			}
			_, err = tx.Exec(`
				INSERT INTO ranking_snapshots (cache_key, payload, updated_at) VALUES (?, ?, ?)
			`, key.String(), payload, now)
			if err != nil {
				return fmt.Errorf("failed to persist snapshot %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().Int("snapshots", len(snapshots)).Msg("Persisted ranking snapshots")
	return nil
}

// LoadAll reads every persisted snapshot. Corrupt rows are skipped with a
// warning; losing a cached snapshot only costs a recompute.
func (s *Store) LoadAll() (map[CacheKey]*Snapshot, error) {
	rows, err := s.db.Query("SELECT cache_key, payload FROM ranking_snapshots")
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[CacheKey]*Snapshot)
	for rows.Next() {
		var (
			key     string
			payload []byte
		)
		if err := rows.Scan(&key, &payload); err != nil {
			s.log.Warn().Err(err).Msg("Failed to scan snapshot row")
			continue
		}

		var snapshot Snapshot
		if err := msgpack.Unmarshal(payload, &snapshot); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Corrupt persisted snapshot, skipping")
			continue
		}
		snapshots[CacheKey{Mode: snapshot.Mode, Filter: snapshot.Filter}] = &snapshot
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}
