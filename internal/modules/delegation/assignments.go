package delegation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AssignmentRepository manages pending delegation assignments. An
// assignment records how many trucks a dispatcher has been promised and
// the dispatcher's live truck count at the moment of assignment, so later
// reconciliation can tell delivered trucks from pre-existing ones.
type AssignmentRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssignmentRepository creates an assignment repository.
func NewAssignmentRepository(db *sql.DB, log zerolog.Logger) *AssignmentRepository {
	return &AssignmentRepository{
		db:  db,
		log: log.With().Str("repository", "delegation_assignments").Logger(),
	}
}

// Create records a new assignment and returns it with a generated id.
func (r *AssignmentRepository) Create(a Assignment) (*Assignment, error) {
	if a.Dispatcher == "" {
		return nil, fmt.Errorf("assignment requires a dispatcher")
	}
	if a.PendingCount <= 0 {
		return nil, fmt.Errorf("assignment requires a positive pending count, got %d", a.PendingCount)
	}

	a.ID = uuid.New().String()
	a.LastUpdated = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO delegation_assignments
			(id, dispatcher, pending_count, note, driver, contract_type, count_at_assignment, updated_by, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Dispatcher, a.PendingCount, a.Note, a.Driver, a.ContractType,
		a.CountAtAssignment, a.UpdatedBy, a.LastUpdated.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment for %s: %w", a.Dispatcher, err)
	}
	return &a, nil
}

// GetAll retrieves every open assignment.
func (r *AssignmentRepository) GetAll() ([]Assignment, error) {
	rows, err := r.db.Query(`
		SELECT id, dispatcher, pending_count, note, driver, contract_type, count_at_assignment, updated_by, last_updated
		FROM delegation_assignments ORDER BY last_updated
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan assignment row")
			continue
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// GetByDispatcher retrieves a dispatcher's open assignments.
func (r *AssignmentRepository) GetByDispatcher(dispatcher string) ([]Assignment, error) {
	rows, err := r.db.Query(`
		SELECT id, dispatcher, pending_count, note, driver, contract_type, count_at_assignment, updated_by, last_updated
		FROM delegation_assignments WHERE dispatcher = ? ORDER BY last_updated
	`, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments for %s: %w", dispatcher, err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment row: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanAssignment(rows *sql.Rows) (Assignment, error) {
	var (
		a       Assignment
		updated int64
	)
	err := rows.Scan(&a.ID, &a.Dispatcher, &a.PendingCount, &a.Note, &a.Driver,
		&a.ContractType, &a.CountAtAssignment, &a.UpdatedBy, &updated)
	if err != nil {
		return Assignment{}, err
	}
	a.LastUpdated = time.Unix(updated, 0)
	return a, nil
}

// Update replaces the mutable fields of an assignment.
func (r *AssignmentRepository) Update(a Assignment) error {
	result, err := r.db.Exec(`
		UPDATE delegation_assignments
		SET pending_count = ?, note = ?, driver = ?, contract_type = ?,
			count_at_assignment = ?, updated_by = ?, last_updated = ?
		WHERE id = ?
	`, a.PendingCount, a.Note, a.Driver, a.ContractType, a.CountAtAssignment,
		a.UpdatedBy, time.Now().Unix(), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update assignment %s: %w", a.ID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("assignment %s not found", a.ID)
	}
	return nil
}

// Delete removes an assignment. Idempotent.
func (r *AssignmentRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM delegation_assignments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment %s: %w", id, err)
	}
	return nil
}

// Reconcile compares a dispatcher's live truck count against each open
// assignment. Trucks that arrived since the assignment was created are
// counted as delivered: consumed = min(live - countAtAssignment, pending).
// Delivered trucks reduce the pending count and roll into the recorded
// baseline; fully delivered assignments are removed. Returns the number
// of assignments closed.
func (r *AssignmentRepository) Reconcile(dispatcher string, liveCount int) (int, error) {
	assignments, err := r.GetByDispatcher(dispatcher)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, a := range assignments {
		consumed := liveCount - a.CountAtAssignment
		if consumed <= 0 {
			continue
		}
		if consumed > a.PendingCount {
			consumed = a.PendingCount
		}

		a.PendingCount -= consumed
		a.CountAtAssignment += consumed

		if a.PendingCount == 0 {
			if err := r.Delete(a.ID); err != nil {
				return closed, err
			}
			closed++
			r.log.Debug().
				Str("dispatcher", dispatcher).
				Str("assignment_id", a.ID).
				Msg("Assignment fully delivered")
			continue
		}

		if err := r.Update(a); err != nil {
			return closed, err
		}
	}
	return closed, nil
}

// PendingTotals sums open pending counts per dispatcher.
func (r *AssignmentRepository) PendingTotals() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT dispatcher, SUM(pending_count) FROM delegation_assignments GROUP BY dispatcher
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum pending assignments: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var (
			dispatcher string
			total      int
		)
		if err := rows.Scan(&dispatcher, &total); err != nil {
			return nil, fmt.Errorf("failed to scan pending total: %w", err)
		}
		totals[dispatcher] = total
	}
	return totals, rows.Err()
}
