package delegation

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/ranking"
)

// DispatcherScore is the delegation priority of one dispatcher, with the
// inputs that produced it exposed for display.
type DispatcherScore struct {
	Dispatcher    string   `json:"dispatcher"`
	MaxCapacity   float64  `json:"maxCapacity"`
	CurrentTrucks int      `json:"currentTrucks"`
	Pending       int      `json:"pending"`
	Vacancy       float64  `json:"vacancy"`
	Rank1w        *int     `json:"rank1w"`
	Rank4w        *int     `json:"rank4w"`
	Compliance    *float64 `json:"compliance"`
	Score         float64  `json:"score"`
}

// Service computes delegation priority for every known dispatcher and
// manages their capacity configuration.
type Service struct {
	profiles    *ProfileRepository
	groups      *GroupRepository
	assignments *AssignmentRepository
	log         zerolog.Logger
}

// NewService creates a delegation service.
func NewService(profiles *ProfileRepository, groups *GroupRepository, assignments *AssignmentRepository, log zerolog.Logger) *Service {
	return &Service{
		profiles:    profiles,
		groups:      groups,
		assignments: assignments,
		log:         log.With().Str("service", "delegation").Logger(),
	}
}

// Assignments exposes the assignment repository for handlers.
func (s *Service) Assignments() *AssignmentRepository { return s.assignments }

// Profiles exposes the capacity profile repository for handlers.
func (s *Service) Profiles() *ProfileRepository { return s.profiles }

// Groups exposes the settings group repository for handlers.
func (s *Service) Groups() *GroupRepository { return s.groups }

// ComputeScores scores every dispatcher in the snapshot for delegation
// priority, highest first. truckCounts holds live trucks per dispatcher;
// compliance is optional per dispatcher and contributes zero when absent.
func (s *Service) ComputeScores(snapshot *ranking.Snapshot, truckCounts map[string]int, compliance map[string]*float64, weights Weights) ([]DispatcherScore, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring weights: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("no ranking snapshot available")
	}

	profiles, err := s.profiles.GetAll()
	if err != nil {
		return nil, err
	}
	groupRules, err := s.groupRulesByID()
	if err != nil {
		return nil, err
	}
	pending, err := s.assignments.PendingTotals()
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*struct{ rank1w, rank4w *int })
	for _, entry := range snapshot.Latest() {
		latest[entry.Entity] = &struct{ rank1w, rank4w *int }{entry.OneWeekRank, entry.FourWeekRank}
	}

	var scores []DispatcherScore
	for _, dispatcher := range snapshot.Entities() {
		profile := profiles[dispatcher]

		var rules RuleList
		if profile != nil && profile.GroupID != nil {
			rules = groupRules[*profile.GroupID]
		}
		maxCap := EffectiveMaxCapacity(profile, snapshot.CriteriaPercentile(dispatcher), rules)

		input := ScoreInput{
			MaxCapacity:        maxCap,
			CurrentTrucks:      truckCounts[dispatcher],
			PendingAssignments: pending[dispatcher],
			ComplianceScore:    compliance[dispatcher],
		}
		if ranks := latest[dispatcher]; ranks != nil {
			input.Rank1w = ranks.rank1w
			input.Rank4w = ranks.rank4w
		}

		scores = append(scores, DispatcherScore{
			Dispatcher:    dispatcher,
			MaxCapacity:   maxCap,
			CurrentTrucks: input.CurrentTrucks,
			Pending:       input.PendingAssignments,
			Vacancy:       input.Vacancy(),
			Rank1w:        input.Rank1w,
			Rank4w:        input.Rank4w,
			Compliance:    input.ComplianceScore,
			Score:         Score(input, weights),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// Eligible reports whether a dispatcher accepts drivers of the given
// contract type. Dispatchers without a profile accept everything.
func (s *Service) Eligible(dispatcher string, contract domain.ContractType) (bool, error) {
	profile, err := s.profiles.Get(dispatcher)
	if err != nil {
		return false, err
	}
	if profile == nil {
		return true, nil
	}
	return profile.Allowed.Allows(contract), nil
}

// ReconcileAll runs assignment reconciliation for every dispatcher with a
// live truck count. Returns the total number of assignments closed.
func (s *Service) ReconcileAll(truckCounts map[string]int) (int, error) {
	closed := 0
	for dispatcher, live := range truckCounts {
		n, err := s.assignments.Reconcile(dispatcher, live)
		if err != nil {
			return closed, fmt.Errorf("reconcile failed for %s: %w", dispatcher, err)
		}
		closed += n
	}
	if closed > 0 {
		s.log.Info().Int("closed", closed).Msg("Reconciled delegation assignments")
	}
	return closed, nil
}

func (s *Service) groupRulesByID() (map[int64]RuleList, error) {
	groups, err := s.groups.GetAll()
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]RuleList, len(groups))
	for _, g := range groups {
		byID[g.ID] = g.Rules
	}
	return byID, nil
}
