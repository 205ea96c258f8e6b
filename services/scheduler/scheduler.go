package scheduler

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/grading"
)

// Refresher is satisfied by *grading.Service.
type Refresher interface {
	RefreshEndedQuarters(ctx context.Context, opts grading.SweepOptions) (grading.SweepStats, error)
}

// Scheduler periodically refreshes the cached grades of recently ended quarters.
// A sweep still running when the next one is due is not overlapped.
type Scheduler struct {
	refresher Refresher
	logger    core.Logger
	cron      *cron.Cron
	ctx       context.Context
	done      chan struct{}
}

// New schedules sweeps on spec, a cron expression or descriptor such as "@every 3h".
func New(refresher Refresher, logger core.Logger, spec string) (*Scheduler, error) {
	s := &Scheduler{
		refresher: refresher,
		logger:    logger,
		ctx:       context.Background(),
		done:      make(chan struct{}),
	}
	cl := cronLogger{logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, errors.Wrapf(err, "parsing schedule %q", spec)
	}
	return s, nil
}

// Run sweeps once immediately, then on schedule until ctx is cancelled.
// It returns once the running sweep, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	s.ctx = ctx
	s.logger.Info("grades scheduler started")
	s.sweep()
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("grades scheduler stopped")
}

// Done is closed once Run returns.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) sweep() {
	ctx := s.ctx
	if ctx.Err() != nil {
		return
	}
	stats, err := s.refresher.RefreshEndedQuarters(ctx, grading.SweepOptions{})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("scheduled sweep failed", err, map[string]interface{}{"run_id": stats.RunID})
		}
		return
	}
	if stats.Errors > 0 {
		s.logger.Warn("scheduled sweep finished with errors", map[string]interface{}{
			"run_id": stats.RunID,
			"errors": stats.Errors,
		})
	}
}

// cronLogger adapts a core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvData(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvData(keysAndValues))
}

func kvData(keysAndValues []interface{}) map[string]interface{} {
	data := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		data[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return data
}
