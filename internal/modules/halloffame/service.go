package halloffame

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/regions"
	"github.com/truckboard/truckboard/internal/modules/timeline"
)

// Service extracts record observations from load data and submits them to
// the repository. Extraction is idempotent: resubmitting the same history
// changes nothing.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a hall-of-fame service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "halloffame").Logger(),
	}
}

// All returns the current record board.
func (s *Service) All() (map[string]Record, error) {
	return s.repo.All()
}

// Update scans load history for record-beating observations. Returns the
// number of records set or improved.
func (s *Service) Update(loads []domain.LoadRecord) (int, error) {
	improved := 0

	submit := func(rec Record) error {
		ok, err := s.repo.Submit(rec)
		if err != nil {
			return err
		}
		if ok {
			improved++
		}
		return nil
	}

	// Best single-load rate per mile, overall and per pickup region.
	for i := range loads {
		load := &loads[i]
		if load.Miles <= 0 || load.Gross <= 0 {
			continue
		}
		rate := load.Gross / load.Miles
		week, err := timeline.NormalizeWeekKey(load.PayDate)
		if err != nil {
			continue
		}

		rec := Record{
			Key:        RecordKey(load.ContractType, CategoryRatePerMile, ""),
			Value:      rate,
			Driver:     load.Driver,
			Dispatcher: load.Dispatcher,
			Date:       week,
			Details:    fmt.Sprintf("$%.0f over %.0f mi from %s", load.Gross, load.Miles, load.Origin),
		}
		if err := submit(rec); err != nil {
			return improved, err
		}

		if region, ok := regions.RegionOf(load.Origin); ok {
			rec.Key = RecordKey(load.ContractType, CategoryRatePerMile, string(region))
			if err := submit(rec); err != nil {
				return improved, err
			}
		}
	}

	// Weekly totals per driver: gross and load count.
	type driverWeek struct {
		contract domain.ContractType
		driver   string
		week     string
	}
	type totals struct {
		dispatcher string
		gross      float64
		loads      int
	}
	weekly := make(map[driverWeek]*totals)

	for i := range loads {
		load := &loads[i]
		week, err := timeline.NormalizeWeekKey(load.PayDate)
		if err != nil {
			s.log.Debug().Str("pay_date", load.PayDate).Msg("Load excluded: unparseable pay date")
			continue
		}

		key := driverWeek{contract: load.ContractType, driver: load.Driver, week: week}
		t := weekly[key]
		if t == nil {
			t = &totals{dispatcher: load.Dispatcher}
			weekly[key] = t
		}
		t.gross += load.Gross
		t.loads++
	}

	for key, t := range weekly {
		if t.gross > 0 {
			err := submit(Record{
				Key:        RecordKey(key.contract, CategoryWeeklyGross, ""),
				Value:      t.gross,
				Driver:     key.driver,
				Dispatcher: t.dispatcher,
				Date:       key.week,
				Details:    fmt.Sprintf("%d loads", t.loads),
			})
			if err != nil {
				return improved, err
			}
		}

		err := submit(Record{
			Key:        RecordKey(key.contract, CategoryWeeklyLoads, ""),
			Value:      float64(t.loads),
			Driver:     key.driver,
			Dispatcher: t.dispatcher,
			Date:       key.week,
			Details:    fmt.Sprintf("$%.0f gross", t.gross),
		})
		if err != nil {
			return improved, err
		}
	}

	if improved > 0 {
		s.log.Info().Int("improved", improved).Msg("Hall of fame updated")
	}
	return improved, nil
}
