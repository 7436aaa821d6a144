package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/bountyscope/internal/metrics"
	"github.com/elonfeng/bountyscope/pkg/graphql"
	"github.com/elonfeng/bountyscope/pkg/record"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage names one phase of a run.
type Stage string

const (
	StageIngest Stage = "ingest"
	StageEnrich Stage = "enrich"
)

// Source selects which listing stage 1 pages through.
type Source string

const (
	SourceHacktivity  Source = "hacktivity"
	SourceLeaderboard Source = "leaderboard"
)

// ErrUnexpectedResponse means a response lacked the list a stage pages over.
var ErrUnexpectedResponse = errors.New("unexpected response shape")

// Store is the subset of the store the pipeline writes through.
type Store interface {
	AppendPrimary(ctx context.Context, rec *record.PrimaryRecord) (int64, error)
	ListDistinctIdentities(ctx context.Context, limit int) ([]string, error)
	UpsertProfile(ctx context.Context, p *record.Profile) (int64, error)
}

// IngestOptions selects one page of stage 1 input.
type IngestOptions struct {
	Source Source
	Size   int
	Offset int    // hacktivity
	Cursor string // leaderboard
}

// Report is the outcome of one stage. It is returned even when the stage
// fails, describing the work committed before the failure.
type Report struct {
	RunID      string        `json:"run_id"`
	Stage      Stage         `json:"stage"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	NextCursor string        `json:"next_cursor,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Err        string        `json:"error,omitempty"`
}

// Pipeline drives ingest then enrich. All work is sequential: one request
// or store call in flight at a time.
type Pipeline struct {
	transport graphql.Transport
	store     Store
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New creates a pipeline over an injected transport and store.
func New(transport graphql.Transport, s Store, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		transport: transport,
		store:     s,
		metrics:   m,
		logger:    logger,
	}
}

// Ingest fetches a single page and appends every normalized record to the
// staging table. A transport failure aborts the stage, as does the first
// store failure; rows appended before it stay committed.
func (p *Pipeline) Ingest(ctx context.Context, opts IngestOptions) (*Report, error) {
	return p.ingest(ctx, uuid.NewString(), opts)
}

// Enrich upserts a profile for every distinct staged identity, newest first.
// The identity list is read once at stage start. Transport failures and
// missing profiles skip the identity; a store failure aborts the stage.
// limit <= 0 enriches every identity.
func (p *Pipeline) Enrich(ctx context.Context, limit int) (*Report, error) {
	return p.enrich(ctx, uuid.NewString(), limit)
}

// Run executes ingest and, if it succeeded, enrich under one run id.
func (p *Pipeline) Run(ctx context.Context, opts IngestOptions, limit int) ([]*Report, error) {
	runID := uuid.NewString()

	ing, err := p.ingest(ctx, runID, opts)
	reports := []*Report{ing}
	if err != nil {
		return reports, err
	}

	enr, err := p.enrich(ctx, runID, limit)
	reports = append(reports, enr)
	return reports, err
}

func (p *Pipeline) ingest(ctx context.Context, runID string, opts IngestOptions) (rep *Report, err error) {
	if opts.Source == "" {
		opts.Source = SourceHacktivity
	}
	rep = newReport(runID, StageIngest)
	log := p.logger.With(zap.String("run_id", runID), zap.String("stage", string(StageIngest)),
		zap.String("source", string(opts.Source)))
	defer p.finish(log, rep, &err)

	if opts.Size <= 0 {
		return rep, fmt.Errorf("ingest %s: page size must be positive, got %d", opts.Source, opts.Size)
	}

	var (
		req       *graphql.Request
		container []string
		listKey   string
		normalize func([]any) []record.PrimaryRecord
	)
	switch opts.Source {
	case SourceHacktivity:
		req = graphql.HacktivitySearch(opts.Size, opts.Offset)
		container, listKey = []string{"search"}, "nodes"
		normalize = record.NormalizeActivityNodes
	case SourceLeaderboard:
		req = graphql.Leaderboard(opts.Size, opts.Cursor)
		container, listKey = []string{"leaderboard"}, "edges"
		normalize = record.NormalizeLeaderboardEdges
	default:
		return rep, fmt.Errorf("ingest: unknown source %q", opts.Source)
	}

	log.Info("fetching page", zap.Int("size", opts.Size), zap.Int("offset", opts.Offset), zap.String("cursor", opts.Cursor))
	resp, err := p.transport.Post(ctx, req)
	if err != nil {
		return rep, fmt.Errorf("ingest %s: %w", opts.Source, err)
	}

	page, ok := resp.Data.Object(container...)
	if !ok {
		return rep, fmt.Errorf("ingest %s: missing %v: %w", opts.Source, container, ErrUnexpectedResponse)
	}
	raw, ok := page.List(listKey)
	if !ok {
		return rep, fmt.Errorf("ingest %s: missing %s: %w", opts.Source, listKey, ErrUnexpectedResponse)
	}
	if info, ok := page.Object("pageInfo"); ok {
		rep.NextCursor = info.String("endCursor")
	}

	records := normalize(raw)
	rep.Processed = len(raw)
	rep.Skipped = len(raw) - len(records)
	if p.metrics != nil {
		p.metrics.RecordsFetched.WithLabelValues(string(opts.Source)).Add(float64(len(raw)))
		p.metrics.RecordsSkipped.WithLabelValues(string(opts.Source)).Add(float64(rep.Skipped))
	}
	if rep.Skipped > 0 {
		log.Info("skipped nodes without identity", zap.Int("count", rep.Skipped))
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		id, err := p.store.AppendPrimary(ctx, &records[i])
		if err != nil {
			return rep, fmt.Errorf("ingest %s: %w", opts.Source, err)
		}
		rep.Succeeded++
		if p.metrics != nil {
			p.metrics.RecordsStored.WithLabelValues(string(opts.Source)).Inc()
		}
		log.Debug("staged record", zap.Int64("id", id), zap.String("username", records[i].Username),
			zap.String("origin", string(records[i].Source)))
	}
	return rep, nil
}

func (p *Pipeline) enrich(ctx context.Context, runID string, limit int) (rep *Report, err error) {
	rep = newReport(runID, StageEnrich)
	log := p.logger.With(zap.String("run_id", runID), zap.String("stage", string(StageEnrich)))
	defer p.finish(log, rep, &err)

	identities, err := p.store.ListDistinctIdentities(ctx, limit)
	if err != nil {
		return rep, fmt.Errorf("enrich: %w", err)
	}
	log.Info("enriching identities", zap.Int("count", len(identities)))

	for _, username := range identities {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Processed++

		profile, reason := p.fetchProfile(ctx, log, username)
		if profile == nil {
			rep.Skipped++
			if p.metrics != nil {
				p.metrics.IdentitiesSkipped.WithLabelValues(reason).Inc()
			}
			continue
		}

		id, err := p.store.UpsertProfile(ctx, profile)
		if err != nil {
			return rep, fmt.Errorf("enrich %s: %w", username, err)
		}
		rep.Succeeded++
		if p.metrics != nil {
			p.metrics.ProfilesUpserted.Inc()
		}
		log.Debug("profile upserted", zap.String("username", username), zap.Int64("id", id))
	}
	return rep, nil
}

// fetchProfile returns nil and a skip reason when the identity cannot be
// enriched this run.
func (p *Pipeline) fetchProfile(ctx context.Context, log *zap.Logger, username string) (*record.Profile, string) {
	resp, err := p.transport.Post(ctx, graphql.UserProfile(username))
	if err != nil {
		log.Warn("profile fetch failed", zap.String("username", username), zap.Error(err))
		return nil, "transport"
	}

	user, _ := resp.Data.Object("user")
	profile, err := record.NormalizeProfile(user)
	switch {
	case errors.Is(err, record.ErrProfileAbsent):
		log.Info("profile not available", zap.String("username", username))
		return nil, "absent"
	case err != nil:
		log.Info("profile unusable", zap.String("username", username), zap.Error(err))
		return nil, "invalid"
	}
	return profile, ""
}

func newReport(runID string, stage Stage) *Report {
	return &Report{RunID: runID, Stage: stage, StartedAt: time.Now().UTC()}
}

func (p *Pipeline) finish(log *zap.Logger, rep *Report, errp *error) {
	rep.Duration = time.Since(rep.StartedAt)
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(string(rep.Stage)).Observe(rep.Duration.Seconds())
	}

	fields := []zap.Field{
		zap.Int("processed", rep.Processed),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("skipped", rep.Skipped),
		zap.Duration("duration", rep.Duration),
	}
	if *errp != nil {
		rep.Err = (*errp).Error()
		if p.metrics != nil {
			p.metrics.StageFailures.WithLabelValues(string(rep.Stage)).Inc()
		}
		log.Error("stage failed", append(fields, zap.Error(*errp))...)
		return
	}
	log.Info("stage complete", fields...)
}
