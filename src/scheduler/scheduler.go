// Package scheduler runs periodic statement downloads on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"bankflow-server/src/ingest"
	"bankflow-server/src/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const maxParallelAccounts = 4

type Ingester interface {
	Ingest(ctx context.Context, accountID string, from, to time.Time, auth models.AuthContext) (ingest.Result, error)
}

type Scheduler struct {
	ingester Ingester
	accounts []string
	auth     models.AuthContext
	spec     string
	schedule cron.Schedule
	daysBack int
	log      zerolog.Logger
	now      func() time.Time
}

// New accepts a standard five-field cron expression or a descriptor such as
// "@hourly" or "@every 30m". Schedules are evaluated in UTC.
func New(ingester Ingester, accounts []string, auth models.AuthContext, spec string, daysBack int, log zerolog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{
		ingester: ingester,
		accounts: accounts,
		auth:     auth,
		spec:     spec,
		schedule: schedule,
		daysBack: daysBack,
		log:      log,
		now:      time.Now,
	}, nil
}

// Next reports when the run following t is due.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.UTC())
}

// Start runs one download immediately and then one per schedule entry until
// ctx is cancelled. A run still in progress when the next one is due causes
// that one to be skipped. Failures are logged; the next entry tries again.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().Str("schedule", s.spec).Strs("accounts", s.accounts).Msg("Scheduler started")
	s.RunOnce(ctx)

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.RunOnce(ctx) }))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// RunOnce downloads [today - daysBack, today] for every account. Accounts
// run in parallel; the first failure is returned after all have finished.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	to := s.now().UTC()
	from := to.AddDate(0, 0, -s.daysBack)

	var g errgroup.Group
	g.SetLimit(maxParallelAccounts)
	for _, accountID := range s.accounts {
		g.Go(func() error {
			result, err := s.ingester.Ingest(ctx, accountID, from, to, s.auth)
			if err != nil {
				s.log.Error().Err(err).Str("account_id", accountID).Msg("Scheduled download failed")
				return err
			}
			s.log.Info().Str("account_id", accountID).Int("inserted", result.Inserted).
				Int("duplicates", result.Duplicates).Msg("Scheduled download completed")
			return nil
		})
	}
	return g.Wait()
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
