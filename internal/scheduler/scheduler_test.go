package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/elonfeng/bountyscope/internal/pipeline"
	"github.com/elonfeng/bountyscope/pkg/alert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRunner struct {
	pages []int // processed count returned per call
	calls []pipeline.IngestOptions
	err   error
}

func (f *fakeRunner) Run(_ context.Context, opts pipeline.IngestOptions, _ int) ([]*pipeline.Report, error) {
	f.calls = append(f.calls, opts)
	n := f.pages[(len(f.calls)-1)%len(f.pages)]
	ing := &pipeline.Report{RunID: "r", Stage: pipeline.StageIngest, Processed: n, Succeeded: n, NextCursor: "c"}
	if f.err != nil {
		ing.Err = f.err.Error()
		return []*pipeline.Report{ing}, f.err
	}
	enr := &pipeline.Report{RunID: "r", Stage: pipeline.StageEnrich, Processed: n, Succeeded: n}
	return []*pipeline.Report{ing, enr}, nil
}

type recorder struct{ got []*alert.Notification }

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Send(_ context.Context, n *alert.Notification) error {
	r.got = append(r.got, n)
	return nil
}

func TestTickAdvancesOffsetAndWraps(t *testing.T) {
	runner := &fakeRunner{pages: []int{10, 10, 4}}
	rec := &recorder{}
	s := New(runner, alert.NewManager([]alert.Notifier{rec}), zaptest.NewLogger(t), 0,
		pipeline.IngestOptions{Source: pipeline.SourceHacktivity, Size: 10}, 0)

	ctx := context.Background()
	s.tick(ctx)
	require.Equal(t, 10, s.next.Offset)
	s.tick(ctx)
	require.Equal(t, 20, s.next.Offset)
	s.tick(ctx)
	require.Equal(t, 0, s.next.Offset)

	require.Equal(t, []int{0, 10, 20}, []int{runner.calls[0].Offset, runner.calls[1].Offset, runner.calls[2].Offset})
	require.Len(t, rec.got, 3)
	require.False(t, rec.got[0].Failed)
}

func TestTickKeepsPageOnFailure(t *testing.T) {
	runner := &fakeRunner{pages: []int{0}, err: errors.New("status 429")}
	rec := &recorder{}
	s := New(runner, alert.NewManager([]alert.Notifier{rec}), zaptest.NewLogger(t), 0,
		pipeline.IngestOptions{Size: 10, Offset: 30}, 0)

	s.tick(context.Background())
	require.Equal(t, 30, s.next.Offset)
	require.Len(t, rec.got, 1)
	require.True(t, rec.got[0].Failed)
	require.Contains(t, rec.got[0].Body, "status 429")
}

func TestAdvanceLeaderboardCursor(t *testing.T) {
	opts := pipeline.IngestOptions{Source: pipeline.SourceLeaderboard, Size: 25}
	next := advance(opts, &pipeline.Report{Processed: 25, NextCursor: "MjU"})
	require.Equal(t, "MjU", next.Cursor)

	next = advance(next, &pipeline.Report{Processed: 3, NextCursor: "Mjg"})
	require.Empty(t, next.Cursor)
}

func TestSummarize(t *testing.T) {
	n := Summarize([]*pipeline.Report{
		{RunID: "abc", Stage: pipeline.StageIngest, Processed: 5, Succeeded: 5},
		{RunID: "abc", Stage: pipeline.StageEnrich, Processed: 4, Succeeded: 3, Skipped: 1},
	}, nil)
	require.Equal(t, "abc", n.RunID)
	require.False(t, n.Failed)
	require.Len(t, n.Stages, 2)
	require.Equal(t, "2 stage(s), 3 profile(s) upserted", n.Body)
}

func TestRunStopsOnCancel(t *testing.T) {
	runner := &fakeRunner{pages: []int{1}}
	s := New(runner, nil, zaptest.NewLogger(t), 0, pipeline.IngestOptions{Size: 10}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, runner.calls, 1)
}
