package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/bountyscope/internal/pipeline"
	"github.com/elonfeng/bountyscope/pkg/alert"
	"go.uber.org/zap"
)

// Runner executes one ingest+enrich run.
type Runner interface {
	Run(ctx context.Context, opts pipeline.IngestOptions, limit int) ([]*pipeline.Report, error)
}

// Scheduler runs the pipeline on a fixed interval, paging through the
// listing one page per tick.
type Scheduler struct {
	runner   Runner
	alertMgr *alert.Manager
	logger   *zap.Logger
	interval time.Duration
	limit    int

	next pipeline.IngestOptions
}

// New creates a new scheduler starting at page start.
func New(
	r Runner,
	alertMgr *alert.Manager,
	logger *zap.Logger,
	interval time.Duration,
	start pipeline.IngestOptions,
	limit int,
) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:   r,
		alertMgr: alertMgr,
		logger:   logger,
		interval: interval,
		limit:    limit,
		next:     start,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler running", zap.Duration("interval", s.interval))
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	opts := s.next
	reports, err := s.runner.Run(ctx, opts, s.limit)
	if err != nil && ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
	if len(reports) > 0 && reports[0].Err == "" {
		s.next = advance(opts, reports[0])
		s.logger.Debug("next page", zap.Int("offset", s.next.Offset), zap.String("cursor", s.next.Cursor))
	}

	if !s.alertMgr.HasNotifiers() {
		return
	}
	if err := s.alertMgr.Broadcast(ctx, Summarize(reports, err)); err != nil {
		s.logger.Warn("notification failed", zap.Error(err))
	}
}

// advance moves to the page after the one just ingested. A short page
// means the end of the listing was reached, so paging restarts.
func advance(opts pipeline.IngestOptions, ingest *pipeline.Report) pipeline.IngestOptions {
	next := opts
	short := ingest.Processed < opts.Size
	switch opts.Source {
	case pipeline.SourceLeaderboard:
		next.Cursor = ingest.NextCursor
		if short {
			next.Cursor = ""
		}
	default:
		next.Offset = opts.Offset + ingest.Processed
		if short {
			next.Offset = 0
		}
	}
	return next
}

// Summarize builds the notification for a finished run.
func Summarize(reports []*pipeline.Report, err error) *alert.Notification {
	n := &alert.Notification{
		Title:    "bountyscope run complete",
		Failed:   err != nil,
		Finished: time.Now().UTC(),
	}
	if n.Failed {
		n.Title = "bountyscope run failed"
	}

	profiles := 0
	for _, r := range reports {
		n.RunID = r.RunID
		n.Stages = append(n.Stages, alert.StageSummary{
			Stage:     string(r.Stage),
			Processed: r.Processed,
			Succeeded: r.Succeeded,
			Skipped:   r.Skipped,
			Error:     r.Err,
		})
		if r.Stage == pipeline.StageEnrich {
			profiles = r.Succeeded
		}
	}
	n.Body = fmt.Sprintf("%d stage(s), %d profile(s) upserted", len(reports), profiles)
	if err != nil {
		n.Body += ": " + err.Error()
	}
	return n
}
