package delegation

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ProfileRepository manages dispatcher capacity profiles in config.db.
// Rule lists are validated before they reach this layer; the repository
// stores what it is given.
type ProfileRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewProfileRepository creates a capacity profile repository.
func NewProfileRepository(db *sql.DB, log zerolog.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:  db,
		log: log.With().Str("repository", "capacity_profiles").Logger(),
	}
}

// Get retrieves a dispatcher's profile. Returns nil when none exists.
func (r *ProfileRepository) Get(dispatcher string) (*CapacityProfile, error) {
	row := r.db.QueryRow(`
		SELECT dispatcher, max_capacity, rules_json, allow_oo, allow_loo, group_id
		FROM capacity_profiles WHERE dispatcher = ?
	`, dispatcher)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capacity profile for %s: %w", dispatcher, err)
	}
	return profile, nil
}

// GetAll retrieves every capacity profile keyed by dispatcher.
func (r *ProfileRepository) GetAll() (map[string]*CapacityProfile, error) {
	rows, err := r.db.Query(`
		SELECT dispatcher, max_capacity, rules_json, allow_oo, allow_loo, group_id
		FROM capacity_profiles
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query capacity profiles: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*CapacityProfile)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan capacity profile row")
			continue
		}
		result[profile.Dispatcher] = profile
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capacity profiles: %w", err)
	}
	return result, nil
}

// Upsert stores a profile, replacing any existing row for the dispatcher.
func (r *ProfileRepository) Upsert(profile *CapacityProfile) error {
	var rulesJSON *string
	if len(profile.Rules) > 0 {
		encoded, err := json.Marshal(profile.Rules)
		if err != nil {
			return fmt.Errorf("failed to encode rules for %s: %w", profile.Dispatcher, err)
		}
		s := string(encoded)
		rulesJSON = &s
	}

	_, err := r.db.Exec(`
		INSERT INTO capacity_profiles (dispatcher, max_capacity, rules_json, allow_oo, allow_loo, group_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dispatcher) DO UPDATE SET
			max_capacity = excluded.max_capacity,
			rules_json = excluded.rules_json,
			allow_oo = excluded.allow_oo,
			allow_loo = excluded.allow_loo,
			group_id = excluded.group_id,
			updated_at = excluded.updated_at
	`, profile.Dispatcher, profile.MaxCapacity, rulesJSON,
		boolToInt(profile.Allowed.OO), boolToInt(profile.Allowed.LOO),
		profile.GroupID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert capacity profile for %s: %w", profile.Dispatcher, err)
	}
	return nil
}

// Delete removes a dispatcher's profile. Idempotent.
func (r *ProfileRepository) Delete(dispatcher string) error {
	_, err := r.db.Exec("DELETE FROM capacity_profiles WHERE dispatcher = ?", dispatcher)
	if err != nil {
		return fmt.Errorf("failed to delete capacity profile for %s: %w", dispatcher, err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row scanner) (*CapacityProfile, error) {
	var (
		profile   CapacityProfile
		rulesJSON sql.NullString
		allowOO   int
		allowLOO  int
	)

	err := row.Scan(&profile.Dispatcher, &profile.MaxCapacity, &rulesJSON, &allowOO, &allowLOO, &profile.GroupID)
	if err != nil {
		return nil, err
	}

	if rulesJSON.Valid && rulesJSON.String != "" {
		if err := json.Unmarshal([]byte(rulesJSON.String), &profile.Rules); err != nil {
			return nil, fmt.Errorf("corrupt rules_json for %s: %w", profile.Dispatcher, err)
		}
	}

	profile.Allowed = AllowedContracts{OO: allowOO != 0, LOO: allowLOO != 0}
	return &profile, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GroupRepository manages settings groups: named rule sets that member
// dispatchers inherit by reference, never by copy.
type GroupRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewGroupRepository creates a settings group repository.
func NewGroupRepository(db *sql.DB, log zerolog.Logger) *GroupRepository {
	return &GroupRepository{
		db:  db,
		log: log.With().Str("repository", "settings_groups").Logger(),
	}
}

// Create stores a new group and returns it with its assigned id.
func (r *GroupRepository) Create(name string, rules RuleList) (*SettingsGroup, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid group rules: %w", err)
	}

	encoded, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode group rules: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO settings_groups (name, rules_json, updated_at) VALUES (?, ?, ?)
	`, name, string(encoded), time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create settings group %s: %w", name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new group id: %w", err)
	}

	return &SettingsGroup{ID: id, Name: name, Rules: rules}, nil
}

// Get retrieves a group by id. Returns nil when none exists.
func (r *GroupRepository) Get(id int64) (*SettingsGroup, error) {
	var (
		group     SettingsGroup
		rulesJSON string
	)
	err := r.db.QueryRow(`
		SELECT id, name, rules_json FROM settings_groups WHERE id = ?
	`, id).Scan(&group.ID, &group.Name, &rulesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings group %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(rulesJSON), &group.Rules); err != nil {
		return nil, fmt.Errorf("corrupt rules_json for group %d: %w", id, err)
	}
	return &group, nil
}

// GetAll retrieves every settings group.
func (r *GroupRepository) GetAll() ([]SettingsGroup, error) {
	rows, err := r.db.Query("SELECT id, name, rules_json FROM settings_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings groups: %w", err)
	}
	defer rows.Close()

	var groups []SettingsGroup
	for rows.Next() {
		var (
			group     SettingsGroup
			rulesJSON string
		)
		if err := rows.Scan(&group.ID, &group.Name, &rulesJSON); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan settings group row")
			continue
		}
		if err := json.Unmarshal([]byte(rulesJSON), &group.Rules); err != nil {
			r.log.Warn().Err(err).Int64("group_id", group.ID).Msg("Corrupt group rules_json")
			continue
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings groups: %w", err)
	}
	return groups, nil
}

// UpdateRules replaces a group's rule list. Every member dispatcher sees
// the change immediately because membership is a reference.
func (r *GroupRepository) UpdateRules(id int64, rules RuleList) error {
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("invalid group rules: %w", err)
	}

	encoded, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode group rules: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE settings_groups SET rules_json = ?, updated_at = ? WHERE id = ?
	`, string(encoded), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update settings group %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("settings group %d not found", id)
	}
	return nil
}

// Delete removes a group. Members' group_id references clear via the
// schema's ON DELETE SET NULL.
func (r *GroupRepository) Delete(id int64) error {
	_, err := r.db.Exec("DELETE FROM settings_groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete settings group %d: %w", id, err)
	}
	return nil
}

// Members returns the dispatchers referencing a group.
func (r *GroupRepository) Members(id int64) ([]string, error) {
	rows, err := r.db.Query("SELECT dispatcher FROM capacity_profiles WHERE group_id = ? ORDER BY dispatcher", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, d)
	}
	return members, rows.Err()
}
