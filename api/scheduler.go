/*
scheduler.go - Automated month-close calculation scheduler

PURPOSE:
  Periodically checks whether the most recently closed month already has
  a calculation run and, when it does not, calculates one in draft state.
  Review, validation and confirmation stay manual; the scheduler only
  guarantees the numbers are waiting when the period closes.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Derives the target period from the wall clock: the previous calendar
    month, full month boundaries
  - Skips months that already have a run under the canonical ID
    ("run-YYYY-MM"), whatever state that run is in

CONFIGURATION:
  - CheckInterval: how often to check (default: 1 hour)
  - Enabled: whether the scheduler is active (default: true)

USAGE:
  scheduler := NewMonthCloseScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CalculateRun, the manual equivalent
  - engine/engine.go: the calculation the scheduler drives
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/andino-hr/payroll-engine/engine"
	"github.com/andino-hr/payroll-engine/payroll"
	"github.com/andino-hr/payroll-engine/store/sqlite"
)

// MonthCloseScheduler calculates a draft run for each closed month.
type MonthCloseScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	Log           *logrus.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMonthCloseScheduler creates a scheduler with the default interval.
func NewMonthCloseScheduler(store *sqlite.Store, handler *Handler) *MonthCloseScheduler {
	return &MonthCloseScheduler{
		Store:         store,
		Handler:       handler,
		Log:           handler.Log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the background loop.
func (s *MonthCloseScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("month-close scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Log.WithField("interval", s.CheckInterval).Info("month-close scheduler started")
}

// Stop stops the scheduler and waits for the loop to exit.
func (s *MonthCloseScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("month-close scheduler stopped")
	}
}

func (s *MonthCloseScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAndCalculate(time.Now())

	for {
		select {
		case <-s.ticker.C:
			s.checkAndCalculate(time.Now())
		case <-s.stop:
			return
		}
	}
}

// previousMonth returns the full boundaries of the month before now.
func previousMonth(now time.Time) engine.Period {
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastOfPrevious := firstOfCurrent.AddDate(0, 0, -1)
	return engine.NewPeriod(
		engine.NewDate(lastOfPrevious.Year(), lastOfPrevious.Month(), 1),
		engine.DateOf(lastOfPrevious),
	)
}

func (s *MonthCloseScheduler) checkAndCalculate(now time.Time) {
	ctx := context.Background()
	period := previousMonth(now)
	runID := engine.RunID(fmt.Sprintf("run-%04d-%02d", period.From.Year(), int(period.From.Month())))

	if _, err := s.Store.GetRun(ctx, runID); err == nil {
		return // already calculated
	}

	records, err := s.Store.ListEmployees(ctx)
	if err != nil {
		s.Log.WithError(err).Error("month-close check failed listing employees")
		return
	}
	if len(records) == 0 {
		return
	}

	inputs := make([]engine.EmployeeInput, 0, len(records))
	for _, rec := range records {
		data, err := s.Store.LoadEmployeeData(ctx, rec.ID, period)
		if err != nil {
			s.Log.WithError(err).WithField("employee", rec.ID).Error("month-close check failed loading employee")
			return
		}
		inputs = append(inputs, payroll.BuildInput(data))
	}

	run, failures, err := s.Handler.engine().Calculate(ctx, period, inputs, nil)
	if err != nil {
		s.Log.WithError(err).WithField("period", period.String()).Error("month-close calculation failed")
		return
	}
	run.ID = runID

	if err := s.Store.SaveRun(ctx, run); err != nil {
		s.Log.WithError(err).WithField("run", runID).Error("month-close run save failed")
		return
	}

	s.Log.WithFields(logrus.Fields{
		"run":      runID,
		"period":   period.String(),
		"lines":    len(run.Lines),
		"failures": len(failures),
	}).Info("month-close run calculated")
}
