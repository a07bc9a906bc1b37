package delegation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckboard/truckboard/internal/domain"
	apptesting "github.com/truckboard/truckboard/internal/testing"
)

func newTestRepos(t *testing.T) (*ProfileRepository, *GroupRepository, *AssignmentRepository, func()) {
	t.Helper()
	db, cleanup := apptesting.NewTestDB(t, "config")
	log := zerolog.Nop()
	return NewProfileRepository(db.Conn(), log),
		NewGroupRepository(db.Conn(), log),
		NewAssignmentRepository(db.Conn(), log),
		cleanup
}

func TestProfileRepository_Roundtrip(t *testing.T) {
	profiles, _, _, cleanup := newTestRepos(t)
	defer cleanup()

	got, err := profiles.Get("Alice")
	require.NoError(t, err)
	assert.Nil(t, got, "missing profile is nil, not an error")

	profile := &CapacityProfile{
		Dispatcher: "Alice",
		Rules:      DefaultRules(),
		Allowed:    AllowedContracts{OO: true, LOO: false},
	}
	require.NoError(t, profiles.Upsert(profile))

	got, err = profiles.Get("Alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DefaultRules(), got.Rules)
	assert.True(t, got.Allowed.OO)
	assert.False(t, got.Allowed.LOO)
	assert.Nil(t, got.MaxCapacity)

	// Upsert replaces: switch from rules to a flat override.
	profile.Rules = nil
	profile.MaxCapacity = domain.Float(8)
	require.NoError(t, profiles.Upsert(profile))

	got, err = profiles.Get("Alice")
	require.NoError(t, err)
	require.NotNil(t, got.MaxCapacity)
	assert.Equal(t, 8.0, *got.MaxCapacity)
	assert.Empty(t, got.Rules)

	require.NoError(t, profiles.Delete("Alice"))
	got, err = profiles.Get("Alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGroupRepository_RulesApplyByReference(t *testing.T) {
	profiles, groups, _, cleanup := newTestRepos(t)
	defer cleanup()

	group, err := groups.Create("east-coast", DefaultRules())
	require.NoError(t, err)
	require.NotZero(t, group.ID)

	for _, d := range []string{"Alice", "Bob"} {
		require.NoError(t, profiles.Upsert(&CapacityProfile{
			Dispatcher: d,
			Allowed:    AllowedContracts{OO: true, LOO: true},
			GroupID:    &group.ID,
		}))
	}

	members, err := groups.Members(group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, members)

	// Editing the group changes every member in one step.
	updated, err := DefaultRules().WithCap(1, 9)
	require.NoError(t, err)
	require.NoError(t, groups.UpdateRules(group.ID, updated))

	got, err := groups.Get(group.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.Rules[1].Cap)

	// Member profiles still carry no rules of their own: they resolve
	// through the group at read time.
	alice, err := profiles.Get("Alice")
	require.NoError(t, err)
	assert.Empty(t, alice.Rules)
	require.NotNil(t, alice.GroupID)
	assert.Equal(t, group.ID, *alice.GroupID)
}

func TestGroupRepository_RejectsInvalidRules(t *testing.T) {
	_, groups, _, cleanup := newTestRepos(t)
	defer cleanup()

	_, err := groups.Create("broken", RuleList{{Min: 0, Max: 0.4, Cap: 4}})
	assert.Error(t, err)

	group, err := groups.Create("ok", DefaultRules())
	require.NoError(t, err)
	assert.Error(t, groups.UpdateRules(group.ID, RuleList{{Min: 0.2, Max: 1, Cap: 4}, {Min: 0, Max: 0.2, Cap: 2}}))
	assert.Error(t, groups.UpdateRules(999, DefaultRules()), "unknown group")
}

func TestAssignmentRepository_ReconcileLifecycle(t *testing.T) {
	_, _, assignments, cleanup := newTestRepos(t)
	defer cleanup()

	created, err := assignments.Create(Assignment{
		Dispatcher:        "Alice",
		PendingCount:      3,
		CountAtAssignment: 10,
		Note:              "two teams plus a solo",
		UpdatedBy:         "ops",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	// No trucks arrived yet: nothing consumed.
	closed, err := assignments.Reconcile("Alice", 10)
	require.NoError(t, err)
	assert.Zero(t, closed)

	// Two of three delivered: pending drops, baseline advances.
	closed, err = assignments.Reconcile("Alice", 12)
	require.NoError(t, err)
	assert.Zero(t, closed)

	open, err := assignments.GetByDispatcher("Alice")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 1, open[0].PendingCount)
	assert.Equal(t, 12, open[0].CountAtAssignment)

	// Re-running with the same live count consumes nothing further.
	closed, err = assignments.Reconcile("Alice", 12)
	require.NoError(t, err)
	assert.Zero(t, closed)

	// Last truck arrives: assignment closes.
	closed, err = assignments.Reconcile("Alice", 13)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	open, err = assignments.GetByDispatcher("Alice")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestAssignmentRepository_PendingTotals(t *testing.T) {
	_, _, assignments, cleanup := newTestRepos(t)
	defer cleanup()

	_, err := assignments.Create(Assignment{Dispatcher: "Alice", PendingCount: 2, CountAtAssignment: 5})
	require.NoError(t, err)
	_, err = assignments.Create(Assignment{Dispatcher: "Alice", PendingCount: 1, CountAtAssignment: 5})
	require.NoError(t, err)
	_, err = assignments.Create(Assignment{Dispatcher: "Bob", PendingCount: 4, CountAtAssignment: 2})
	require.NoError(t, err)

	totals, err := assignments.PendingTotals()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Alice": 3, "Bob": 4}, totals)
}

func TestAssignmentRepository_CreateValidation(t *testing.T) {
	_, _, assignments, cleanup := newTestRepos(t)
	defer cleanup()

	_, err := assignments.Create(Assignment{PendingCount: 1})
	assert.Error(t, err, "dispatcher required")

	_, err = assignments.Create(Assignment{Dispatcher: "Alice", PendingCount: 0})
	assert.Error(t, err, "positive pending count required")
}
