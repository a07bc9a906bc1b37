// Package refresh orchestrates the periodic recompute cycle: fetch feed
// data, rebuild every ranking snapshot from scratch, swap the cache, and
// update the downstream stores.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/clients/feed"
	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/delegation"
	"github.com/truckboard/truckboard/internal/modules/halloffame"
	"github.com/truckboard/truckboard/internal/modules/ranking"
	"github.com/truckboard/truckboard/internal/utils"
)

// DataSource supplies the merged feed dataset.
type DataSource interface {
	FetchAll(ctx context.Context) (*feed.Dataset, error)
}

// combinations is every (mode, filter) pair a refresh precomputes.
var combinations = []ranking.CacheKey{
	{Mode: domain.ModeDispatcher, Filter: domain.FilterAll},
	{Mode: domain.ModeDispatcher, Filter: domain.FilterOwnerOperator},
	{Mode: domain.ModeDispatcher, Filter: domain.FilterLeasedOwnerOperator},
	{Mode: domain.ModeTeam, Filter: domain.FilterAll},
	{Mode: domain.ModeTeam, Filter: domain.FilterOwnerOperator},
	{Mode: domain.ModeTeam, Filter: domain.FilterLeasedOwnerOperator},
}

// Service runs the refresh cycle. Every refresh recomputes all ranks for
// all known weeks from the full historical set; there is no incremental
// path. A refresh that finishes after a newer one started discards its
// results, so the cache only ever moves forward.
type Service struct {
	source     DataSource
	engine     *ranking.Engine
	cache      *ranking.Cache
	store      *ranking.Store
	fame       *halloffame.Service
	delegation *delegation.Service
	log        zerolog.Logger

	generation atomic.Uint64

	mu          sync.RWMutex
	data        *feed.Dataset
	lastRefresh time.Time
}

// NewService creates a refresh service. store, fame, and delegation may be
// nil; the corresponding step is skipped.
func NewService(source DataSource, engine *ranking.Engine, cache *ranking.Cache,
	store *ranking.Store, fame *halloffame.Service, delegationSvc *delegation.Service,
	log zerolog.Logger) *Service {
	return &Service{
		source:     source,
		engine:     engine,
		cache:      cache,
		store:      store,
		fame:       fame,
		delegation: delegationSvc,
		log:        log.With().Str("service", "refresh").Logger(),
	}
}

// Data returns the dataset from the most recent completed refresh, or nil
// before the first one.
func (s *Service) Data() *feed.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Loads returns the load records from the most recent completed refresh.
func (s *Service) Loads() []domain.LoadRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	return s.data.Loads
}

// LastRefresh returns when the cache last advanced.
func (s *Service) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// WarmFromStore loads persisted snapshots into the cache so endpoints can
// serve rankings before the first fetch completes. Missing or corrupt
// persistence is not fatal.
func (s *Service) WarmFromStore() {
	if s.store == nil {
		return
	}
	snapshots, err := s.store.LoadAll()
	if err != nil {
		s.log.Warn().Err(err).Msg("Could not warm cache from persisted snapshots")
		return
	}
	if len(snapshots) == 0 {
		return
	}
	s.cache.ReplaceAll(snapshots)
	s.log.Info().Int("snapshots", len(snapshots)).Msg("Cache warmed from persisted snapshots")
}

// Refresh runs one full cycle. Safe to call concurrently: the newest
// invocation wins, earlier ones that finish late are discarded.
func (s *Service) Refresh(ctx context.Context) error {
	gen := s.generation.Add(1)
	started := time.Now()

	dataset, err := s.source.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh fetch failed: %w", err)
	}

	timer := utils.NewTimer("compute_ranks", s.log)
	snapshots := make(map[ranking.CacheKey]*ranking.Snapshot, len(combinations))
	for _, key := range combinations {
		snapshots[key] = s.engine.ComputeRanks(dataset.Weekly, key.Mode, key.Filter)
	}
	timer.Stop()

	// Superseded by a newer refresh: let the newer data win.
	if s.generation.Load() != gen {
		s.log.Info().Uint64("generation", gen).Msg("Refresh superseded, discarding results")
		return nil
	}

	s.cache.ReplaceAll(snapshots)

	s.mu.Lock()
	s.data = dataset
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveAll(snapshots); err != nil {
			s.log.Error().Err(err).Msg("Failed to persist ranking snapshots")
		}
	}

	if s.fame != nil {
		if _, err := s.fame.Update(dataset.Loads); err != nil {
			s.log.Error().Err(err).Msg("Failed to update hall of fame")
		}
	}

	if s.delegation != nil {
		counts := TruckCounts(snapshots[ranking.CacheKey{Mode: domain.ModeDispatcher, Filter: domain.FilterAll}])
		if _, err := s.delegation.ReconcileAll(counts); err != nil {
			s.log.Error().Err(err).Msg("Failed to reconcile delegation assignments")
		}
	}

	s.log.Info().
		Uint64("generation", gen).
		Dur("elapsed", time.Since(started)).
		Int("weekly_records", len(dataset.Weekly)).
		Int("loads", len(dataset.Loads)).
		Msg("Refresh complete")
	return nil
}

// TruckCounts returns each dispatcher's latest-week driver count from the
// current cache generation.
func (s *Service) TruckCounts() map[string]int {
	snapshot, ok := s.cache.Get(domain.ModeDispatcher, domain.FilterAll)
	if !ok {
		return map[string]int{}
	}
	return TruckCounts(snapshot)
}

// TruckCounts extracts each dispatcher's latest-week driver count from a
// dispatcher-mode snapshot. Delegation vacancy math runs on these.
func TruckCounts(snapshot *ranking.Snapshot) map[string]int {
	counts := make(map[string]int)
	if snapshot == nil || len(snapshot.Weeks) == 0 {
		return counts
	}

	latest := snapshot.Weeks[0]
	for i := range snapshot.Rollups {
		r := &snapshot.Rollups[i]
		if r.Date == latest {
			counts[r.Entity] = r.DriverCount
		}
	}
	return counts
}

// Job adapts the service to the scheduler's job interface.
type Job struct {
	service *Service
	timeout time.Duration
}

// NewJob wraps the service for cron scheduling.
func NewJob(service *Service, timeout time.Duration) *Job {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Job{service: service, timeout: timeout}
}

// Name implements scheduler.Job.
func (j *Job) Name() string { return "refresh" }

// Run implements scheduler.Job.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.service.Refresh(ctx)
}
