package halloffame

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository persists hall-of-fame records in records.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a hall-of-fame repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "hall_of_fame").Logger(),
	}
}

// All retrieves every stored record keyed by record key.
func (r *Repository) All() (map[string]Record, error) {
	rows, err := r.db.Query(`
		SELECT record_key, value, driver, dispatcher, date, details FROM hall_of_fame
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hall of fame: %w", err)
	}
	defer rows.Close()

	records := make(map[string]Record)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Key, &rec.Value, &rec.Driver, &rec.Dispatcher, &rec.Date, &rec.Details); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan hall of fame row")
			continue
		}
		records[rec.Key] = rec
	}
	return records, rows.Err()
}

// Get retrieves one record. Returns nil when no record exists for the key.
func (r *Repository) Get(key string) (*Record, error) {
	var rec Record
	err := r.db.QueryRow(`
		SELECT record_key, value, driver, dispatcher, date, details
		FROM hall_of_fame WHERE record_key = ?
	`, key).Scan(&rec.Key, &rec.Value, &rec.Driver, &rec.Dispatcher, &rec.Date, &rec.Details)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hall of fame record %s: %w", key, err)
	}
	return &rec, nil
}

// Submit offers an observation for a key. The stored record is replaced
// only when the new value strictly exceeds the old one; existing records
// never regress. Returns true when the record was set or improved.
func (r *Repository) Submit(rec Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}

	result, err := r.db.Exec(`
		INSERT INTO hall_of_fame (record_key, value, driver, dispatcher, date, details, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_key) DO UPDATE SET
			value = excluded.value,
			driver = excluded.driver,
			dispatcher = excluded.dispatcher,
			date = excluded.date,
			details = excluded.details,
			updated_at = excluded.updated_at
		WHERE excluded.value > hall_of_fame.value
	`, rec.Key, rec.Value, rec.Driver, rec.Dispatcher, rec.Date, rec.Details, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to submit hall of fame record %s: %w", rec.Key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read submit result for %s: %w", rec.Key, err)
	}
	if affected > 0 {
		r.log.Info().
			Str("key", rec.Key).
			Float64("value", rec.Value).
			Str("driver", rec.Driver).
			Msg("New hall of fame record")
	}
	return affected > 0, nil
}
