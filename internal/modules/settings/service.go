package settings

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/anomaly"
	"github.com/truckboard/truckboard/internal/modules/delegation"
	"github.com/truckboard/truckboard/internal/modules/trends"
)

// Setting keys. Stored flat in the settings table; the service is the only
// place that knows the key strings.
const (
	keyWeightNeed       = "delegation.weight_need"
	keyWeightRank4w     = "delegation.weight_rank_4w"
	keyWeightRank1w     = "delegation.weight_rank_1w"
	keyWeightCompliance = "delegation.weight_compliance"

	keyTrendSignificance = "trends.significance_pct"
	keyTrendRecentWeeks  = "trends.recent_weeks"
	keyTrendOlderWeeks   = "trends.older_weeks"

	keyAnomalyLookback    = "anomaly.lookback_weeks"
	keyAnomalyWorstPct    = "anomaly.worst_pct"
	keyAnomalyBadFraction = "anomaly.min_bad_fraction"
	keyAnomalyDropPct     = "anomaly.drop_threshold_pct"

	keyDefaultMode   = "ranking.default_mode"
	keyDefaultFilter = "ranking.default_filter"
)

// Service exposes typed, validated access to the tunable engine settings.
// Validation happens here, at the mutation boundary; the engines themselves
// trust what they are handed.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a settings service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// Repo exposes the raw repository for generic settings handlers.
func (s *Service) Repo() *Repository { return s.repo }

// Weights returns the stored delegation scoring weights, defaults when
// unset.
func (s *Service) Weights() (delegation.Weights, error) {
	def := delegation.DefaultWeights()
	w := delegation.Weights{}
	var err error

	if w.Need, err = s.repo.GetFloat(keyWeightNeed, def.Need); err != nil {
		return def, err
	}
	if w.Rank4w, err = s.repo.GetFloat(keyWeightRank4w, def.Rank4w); err != nil {
		return def, err
	}
	if w.Rank1w, err = s.repo.GetFloat(keyWeightRank1w, def.Rank1w); err != nil {
		return def, err
	}
	if w.Compliance, err = s.repo.GetFloat(keyWeightCompliance, def.Compliance); err != nil {
		return def, err
	}

	// Stored weights are validated on the way in, but a hand-edited
	// database falls back to defaults rather than poisoning every score.
	if err := w.Validate(); err != nil {
		s.log.Warn().Err(err).Msg("Stored weights invalid, using defaults")
		return def, nil
	}
	return w, nil
}

// SetWeights stores the delegation scoring weights after validation.
func (s *Service) SetWeights(w delegation.Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}

	for key, v := range map[string]float64{
		keyWeightNeed:       w.Need,
		keyWeightRank4w:     w.Rank4w,
		keyWeightRank1w:     w.Rank1w,
		keyWeightCompliance: w.Compliance,
	} {
		if err := s.repo.SetFloat(key, v); err != nil {
			return err
		}
	}
	return nil
}

// TrendConfig returns the stored trend detection settings layered over the
// defaults.
func (s *Service) TrendConfig() (trends.Config, error) {
	cfg := trends.DefaultConfig()
	var err error

	if cfg.SignificancePercent, err = s.repo.GetFloat(keyTrendSignificance, cfg.SignificancePercent); err != nil {
		return cfg, err
	}
	if cfg.RecentWeeks, err = s.repo.GetInt(keyTrendRecentWeeks, cfg.RecentWeeks); err != nil {
		return cfg, err
	}
	if cfg.OlderWeeks, err = s.repo.GetInt(keyTrendOlderWeeks, cfg.OlderWeeks); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SetTrendConfig stores the tunable subset of trend detection settings.
func (s *Service) SetTrendConfig(cfg trends.Config) error {
	if cfg.RecentWeeks < 1 || cfg.OlderWeeks < 1 {
		return fmt.Errorf("trend windows must be at least one week")
	}
	if cfg.SignificancePercent <= 0 {
		return fmt.Errorf("significance threshold must be positive")
	}

	if err := s.repo.SetFloat(keyTrendSignificance, cfg.SignificancePercent); err != nil {
		return err
	}
	if err := s.repo.SetInt(keyTrendRecentWeeks, cfg.RecentWeeks); err != nil {
		return err
	}
	return s.repo.SetInt(keyTrendOlderWeeks, cfg.OlderWeeks)
}

// ChronicConfig returns stored chronic-low detection settings for a metric,
// layered over the defaults.
func (s *Service) ChronicConfig(metricID string) (anomaly.ChronicConfig, error) {
	cfg := anomaly.DefaultChronicConfig(metricID)
	var err error

	if cfg.LookbackWeeks, err = s.repo.GetInt(keyAnomalyLookback, cfg.LookbackWeeks); err != nil {
		return cfg, err
	}
	if cfg.WorstPercent, err = s.repo.GetFloat(keyAnomalyWorstPct, cfg.WorstPercent); err != nil {
		return cfg, err
	}
	if cfg.MinBadFraction, err = s.repo.GetFloat(keyAnomalyBadFraction, cfg.MinBadFraction); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DropThresholdPercent returns the stored week-over-baseline drop threshold.
func (s *Service) DropThresholdPercent() (float64, error) {
	return s.repo.GetFloat(keyAnomalyDropPct, anomaly.DefaultDropThresholdPercent)
}

// DefaultMode returns the stored default ranking mode.
func (s *Service) DefaultMode() (domain.Mode, error) {
	value, err := s.repo.Get(keyDefaultMode)
	if err != nil {
		return domain.ModeDispatcher, err
	}
	if value == nil {
		return domain.ModeDispatcher, nil
	}

	mode := domain.Mode(*value)
	if !mode.Valid() {
		s.log.Warn().Str("mode", *value).Msg("Stored default mode invalid, using dispatcher")
		return domain.ModeDispatcher, nil
	}
	return mode, nil
}

// SetDefaultMode stores the default ranking mode.
func (s *Service) SetDefaultMode(mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown ranking mode %q", mode)
	}
	return s.repo.Set(keyDefaultMode, string(mode), nil)
}

// DefaultFilter returns the stored default driver-type filter.
func (s *Service) DefaultFilter() (domain.DriverTypeFilter, error) {
	value, err := s.repo.Get(keyDefaultFilter)
	if err != nil {
		return domain.FilterAll, err
	}
	if value == nil {
		return domain.FilterAll, nil
	}

	filter := domain.DriverTypeFilter(*value)
	if !filter.Valid() {
		s.log.Warn().Str("filter", *value).Msg("Stored default filter invalid, using all")
		return domain.FilterAll, nil
	}
	return filter, nil
}

// SetDefaultFilter stores the default driver-type filter.
func (s *Service) SetDefaultFilter(filter domain.DriverTypeFilter) error {
	if !filter.Valid() {
		return fmt.Errorf("unknown driver type filter %q", filter)
	}
	return s.repo.Set(keyDefaultFilter, string(filter), nil)
}
