package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/phantomsec/threatwatch/internal/config"
	"github.com/phantomsec/threatwatch/internal/installwatch"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service drives the install watcher's reconciliation poll
type Service struct {
	cfg     *config.Config
	watcher *installwatch.Watcher
	cron    *cron.Cron
}

// NewService creates the scheduler. SkipIfStillRunning gives the poll
// fixed-delay semantics: a tick that fires while the previous reconciliation
// is still running is dropped, so skipped ticks never backlog.
func NewService(cfg *config.Config, watcher *installwatch.Watcher) *Service {
	return &Service{
		cfg:     cfg,
		watcher: watcher,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
	}
}

// Start begins the reconciliation poll.
func (s *Service) Start() error {
	spec := fmt.Sprintf("@every %s", s.cfg.PollInterval)

	_, err := s.cron.AddFunc(spec, func() {
		if err := s.watcher.Reconcile(context.Background()); err != nil {
			if errors.Is(err, installwatch.ErrNoSnapshot) {
				logrus.Debug("Reconciliation skipped: no package snapshot yet")
				return
			}
			logrus.Errorf("Package reconciliation failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started, reconciling installed packages every %s", s.cfg.PollInterval)
	return nil
}

// Stop stops the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
