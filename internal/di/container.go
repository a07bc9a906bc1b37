// Package di wires up the application's services and repositories.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/clients/feed"
	"github.com/truckboard/truckboard/internal/config"
	"github.com/truckboard/truckboard/internal/database"
	"github.com/truckboard/truckboard/internal/modules/aggregation"
	"github.com/truckboard/truckboard/internal/modules/anomaly"
	"github.com/truckboard/truckboard/internal/modules/delegation"
	"github.com/truckboard/truckboard/internal/modules/halloffame"
	"github.com/truckboard/truckboard/internal/modules/metrics"
	"github.com/truckboard/truckboard/internal/modules/ranking"
	"github.com/truckboard/truckboard/internal/modules/refresh"
	"github.com/truckboard/truckboard/internal/modules/regions"
	"github.com/truckboard/truckboard/internal/modules/rolling"
	"github.com/truckboard/truckboard/internal/modules/settings"
	"github.com/truckboard/truckboard/internal/modules/trends"
)

// Container holds all application dependencies.
type Container struct {
	ConfigDB  *database.DB
	RecordsDB *database.DB

	MetricCatalog *metrics.Catalog
	Aggregator    *aggregation.Aggregator
	RollingEngine *rolling.Engine

	RankingEngine *ranking.Engine
	RankingCache  *ranking.Cache
	RankingStore  *ranking.Store

	TrendDetector   *trends.Detector
	AnomalyDetector *anomaly.Detector

	ProfileRepo       *delegation.ProfileRepository
	GroupRepo         *delegation.GroupRepository
	AssignmentRepo    *delegation.AssignmentRepository
	DelegationService *delegation.Service

	RegionCalculator *regions.Calculator

	FameRepo    *halloffame.Repository
	FameService *halloffame.Service

	SettingsRepo    *settings.Repository
	SettingsService *settings.Service

	FeedClient     *feed.Client
	RefreshService *refresh.Service

	log zerolog.Logger
}

// New builds the full dependency graph. Databases are opened and migrated
// here; everything downstream receives its dependencies explicitly.
func New(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{log: log}

	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open config database: %w", err)
	}
	if err := configDB.Migrate(); err != nil {
		configDB.Close()
		return nil, fmt.Errorf("failed to migrate config database: %w", err)
	}
	c.ConfigDB = configDB

	recordsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "records.db"),
		Profile: database.ProfileRecords,
		Name:    "records",
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open records database: %w", err)
	}
	if err := recordsDB.Migrate(); err != nil {
		recordsDB.Close()
		c.Close()
		return nil, fmt.Errorf("failed to migrate records database: %w", err)
	}
	c.RecordsDB = recordsDB

	for _, db := range []*database.DB{configDB, recordsDB} {
		log.Info().
			Str("name", db.Name()).
			Str("path", db.Path()).
			Str("profile", string(db.Profile())).
			Msg("Database ready")
	}

	c.MetricCatalog = metrics.NewCatalog()
	c.Aggregator = aggregation.NewAggregator(c.MetricCatalog, log)
	c.RollingEngine = rolling.NewEngine(c.MetricCatalog, log)

	c.RankingEngine = ranking.NewEngine(c.Aggregator, c.RollingEngine, log)
	c.RankingCache = ranking.NewCache()
	c.RankingStore = ranking.NewStore(recordsDB.Conn(), log)

	c.TrendDetector = trends.NewDetector(c.MetricCatalog, log)
	c.AnomalyDetector = anomaly.NewDetector(c.MetricCatalog, log)

	c.ProfileRepo = delegation.NewProfileRepository(configDB.Conn(), log)
	c.GroupRepo = delegation.NewGroupRepository(configDB.Conn(), log)
	c.AssignmentRepo = delegation.NewAssignmentRepository(configDB.Conn(), log)
	c.DelegationService = delegation.NewService(c.ProfileRepo, c.GroupRepo, c.AssignmentRepo, log)

	c.RegionCalculator = regions.NewCalculator(log)

	c.FameRepo = halloffame.NewRepository(recordsDB.Conn(), log)
	c.FameService = halloffame.NewService(c.FameRepo, log)

	c.SettingsRepo = settings.NewRepository(configDB.Conn(), log)
	c.SettingsService = settings.NewService(c.SettingsRepo, log)

	c.FeedClient = feed.NewClient(feed.Config{
		ShardURLs:    cfg.FeedShardURLs,
		LoadURLs:     cfg.LoadFeedURLs,
		Timeout:      cfg.FeedTimeout,
		AllowPartial: cfg.AllowPartial,
	}, log)

	c.RefreshService = refresh.NewService(
		c.FeedClient,
		c.RankingEngine,
		c.RankingCache,
		c.RankingStore,
		c.FameService,
		c.DelegationService,
		log,
	)

	return c, nil
}

// Close checkpoints and closes both databases. The WAL checkpoint keeps
// the sidecar files from accumulating across restarts.
func (c *Container) Close() {
	for _, db := range []*database.DB{c.RecordsDB, c.ConfigDB} {
		if db == nil {
			continue
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			c.log.Warn().Err(err).Str("name", db.Name()).Msg("WAL checkpoint failed on close")
		}
		if err := db.Close(); err != nil {
			c.log.Error().Err(err).Str("name", db.Name()).Msg("Failed to close database")
		}
	}
}
