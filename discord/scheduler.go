package discord

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"discord-marketing/pipeline/store"
)

// Scheduler runs periodic incremental scrape passes. Grounded on the
// teacher's bot/scheduler.go, generalized from "hourly forum scan" to
// "hourly incremental scrape pass" plus an optional full pass at
// startup.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.SugaredLogger
}

// NewScheduler builds a stopped scheduler. Call Start to begin.
func NewScheduler(log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// Start schedules an hourly incremental pass and, if scanAtStartup is
// set, kicks off an immediate full pass in the background.
func (sc *Scheduler) Start(ctx context.Context, sess *Session, st *store.Store, opts DriveOptions, scanAtStartup bool) error {
	_, err := sc.cron.AddFunc("@hourly", func() {
		incremental := opts
		incremental.Full = false
		sc.log.Infow("running scheduled incremental scrape")
		if _, err := Drive(ctx, sess, st, sc.log, incremental); err != nil {
			sc.log.Errorw("scheduled scrape failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	sc.cron.Start()

	if scanAtStartup {
		go func() {
			full := opts
			full.Full = true
			sc.log.Infow("running startup full scrape")
			if _, err := Drive(ctx, sess, st, sc.log, full); err != nil {
				sc.log.Errorw("startup scrape failed", "error", err)
			}
		}()
	}
	return nil
}

// Stop halts the cron loop, waiting for any in-flight job to finish.
func (sc *Scheduler) Stop() {
	sc.cron.Stop()
}
