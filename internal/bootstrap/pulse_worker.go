package bootstrap

import (
	"context"
	"sync"
	"time"

	"feedpulse/config"
	"feedpulse/core/domain"
	"feedpulse/core/service/digest"
	"feedpulse/pkg/logger"

	"github.com/rs/zerolog"
)

// Worker runs the background schedulers: the periodic batch over unprocessed
// messages and the daily digest build.
type Worker struct {
	deps   *Dependencies
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	zlog   zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		deps:   deps,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		zlog:   deps.ZLog.With().Str("component", "worker").Logger(),
	}

	return w, cleanup, nil
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runBatchScheduler()
	}()

	if w.cfg.DigestEnabled && w.deps.DigestBuilder != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runDigestScheduler()
		}()
		logger.Info("Digest scheduler started (daily at %02d:00 UTC)", w.cfg.DigestHourUTC)
	}

	logger.Info("Batch scheduler started (interval: %v)", w.cfg.BatchInterval())

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) runBatchScheduler() {
	ticker := time.NewTicker(w.cfg.BatchInterval())
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			result, err := w.deps.Pipeline.ProcessBatch(w.ctx)
			if err != nil {
				w.zlog.Error().Err(err).Msg("batch run failed")
				continue
			}
			if !result.Ran {
				w.zlog.Debug().Msg("batch already running, skipped")
				continue
			}
			if result.Processed > 0 {
				w.zlog.Info().
					Int("processed", result.Processed).
					Int("blocked", result.Blocked).
					Int("notifications", result.NotificationsCreated).
					Msg("batch completed")
			}
		}
	}
}

func (w *Worker) runDigestScheduler() {
	for {
		next := nextDigestRun(time.Now().UTC(), w.cfg.DigestHourUTC)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-w.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			// Digest covers the previous UTC day.
			day := time.Now().UTC().AddDate(0, 0, -1)
			d, err := w.deps.DigestBuilder.BuildFor(w.ctx, day)
			if err != nil {
				w.zlog.Error().Err(err).Time("day", day).Msg("digest build failed")
				continue
			}
			w.zlog.Info().Str("day", day.Format("2006-01-02")).Msg("digest built")
			w.distributeDigest(w.ctx, d)
		}
	}
}

// distributeDigest queues one digest notification per enabled recipient and
// hands the new records to the dispatcher when delivery is configured.
func (w *Worker) distributeDigest(ctx context.Context, d *domain.Digest) {
	recipients, err := w.deps.RecipientRepo.ListActive(ctx)
	if err != nil {
		w.zlog.Error().Err(err).Msg("list recipients for digest failed")
		return
	}

	title := "Daily digest " + d.Date.Format("2006-01-02")
	body := digest.Render(d)

	var created []*domain.NotificationRecord
	for _, r := range recipients {
		if !r.Preferences.Enabled {
			continue
		}
		record := &domain.NotificationRecord{
			RecipientID: r.ID,
			Kind:        domain.NotificationDigest,
			Title:       &title,
			Body:        body,
		}
		if err := w.deps.NotificationRepo.Create(ctx, record); err != nil {
			w.zlog.Error().Err(err).Str("recipient", r.ID.String()).Msg("create digest notification failed")
			continue
		}
		created = append(created, record)
	}

	if len(created) > 0 && w.deps.Dispatcher != nil {
		result := w.deps.Dispatcher.Dispatch(ctx, created)
		w.zlog.Info().
			Int("created", len(created)).
			Int("sent", result.Successful).
			Int("failed", result.Failed).
			Msg("digest notifications dispatched")
	}
}

// nextDigestRun returns the next occurrence of hour:00 UTC strictly after now.
func nextDigestRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
