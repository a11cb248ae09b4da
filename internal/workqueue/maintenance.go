package workqueue

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// DefaultMaintenanceSchedule sweeps expired queue payloads and compacts
// the badger value log every five minutes — low frequency since the sweep
// walks an indexed range and GC is already incremental.
const DefaultMaintenanceSchedule = "*/5 * * * *"

// Maintenance runs a low-frequency background sweep, the same
// cron.New/AddFunc/Start/Stop shape the teacher uses for its scheduler
// service, minus the per-job-definition dispatch: here there is exactly
// one job, run on one schedule.
type Maintenance struct {
	Store  *Store
	DB     *badger.DB
	Logger arbor.ILogger

	cron *cron.Cron
}

func NewMaintenance(store *Store, db *badger.DB, logger arbor.ILogger) *Maintenance {
	return &Maintenance{Store: store, DB: db, Logger: logger, cron: cron.New()}
}

// Start registers the sweep on schedule (DefaultMaintenanceSchedule if
// empty) and starts the cron scheduler's own goroutine.
func (m *Maintenance) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultMaintenanceSchedule
	}
	if _, err := m.cron.AddFunc(schedule, m.sweep); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop waits for any in-flight sweep to finish before returning.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

func (m *Maintenance) sweep() {
	defer func() {
		if r := recover(); r != nil {
			m.Logger.Error().Interface("panic", r).Msg("maintenance sweep recovered from panic")
		}
	}()

	removed, err := m.Store.SweepExpired(time.Now())
	if err != nil {
		m.Logger.Warn().Err(err).Msg("maintenance: sweep expired jobs failed")
	} else if removed > 0 {
		m.Logger.Info().Int("removed", removed).Msg("maintenance: swept expired job records")
	}

	if m.DB == nil {
		return
	}
	for {
		err := m.DB.RunValueLogGC(0.5)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				m.Logger.Warn().Err(err).Msg("maintenance: value log gc failed")
			}
			return
		}
	}
}
