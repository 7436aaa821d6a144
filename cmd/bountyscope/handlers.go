package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/bountyscope/internal/config"
	"github.com/elonfeng/bountyscope/internal/logging"
	"github.com/elonfeng/bountyscope/internal/metrics"
	"github.com/elonfeng/bountyscope/internal/pipeline"
	"github.com/elonfeng/bountyscope/internal/scheduler"
	"github.com/elonfeng/bountyscope/internal/store"
	"github.com/elonfeng/bountyscope/pkg/alert"
	"github.com/elonfeng/bountyscope/pkg/graphql"
	"github.com/elonfeng/bountyscope/pkg/record"
	"github.com/elonfeng/bountyscope/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type ingestFlags struct {
	size   int
	offset int
	source string
	cursor string
}

// app bundles what every command needs: config, logger and an open store.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *store.SQLiteStore
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	a.logger.Sync()
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	client, err := graphql.NewClient(graphql.Options{
		Endpoint:  a.cfg.GraphQL.Endpoint,
		Timeout:   a.cfg.GraphQL.ParseTimeout(),
		Proxy:     a.cfg.GraphQL.Proxy,
		UserAgent: a.cfg.GraphQL.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("graphql client: %w", err)
	}
	return pipeline.New(client, a.db, a.metrics, a.logger), nil
}

func (a *app) alertManager() *alert.Manager {
	var notifiers []alert.Notifier

	if a.cfg.Alerts.Slack.Enabled && a.cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(a.cfg.Alerts.Slack.WebhookURL))
	}
	if a.cfg.Alerts.Discord.Enabled && a.cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(a.cfg.Alerts.Discord.WebhookURL))
	}
	if a.cfg.Alerts.Webhook.Enabled && a.cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(a.cfg.Alerts.Webhook.URL, a.cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

// ingestOptions merges command flags over the configured defaults.
func (a *app) ingestOptions(cmd *cobra.Command, flags ingestFlags) pipeline.IngestOptions {
	opts := pipeline.IngestOptions{
		Source: pipeline.Source(a.cfg.Ingest.Source),
		Size:   a.cfg.Ingest.PageSize,
		Offset: a.cfg.Ingest.Offset,
		Cursor: flags.cursor,
	}
	if cmd.Flags().Changed("source") {
		opts.Source = pipeline.Source(flags.source)
	}
	if cmd.Flags().Changed("size") {
		opts.Size = flags.size
	}
	if cmd.Flags().Changed("offset") {
		opts.Offset = flags.offset
	}
	return opts
}

func (a *app) enrichLimit(cmd *cobra.Command, limit int) int {
	if cmd.Flags().Changed("limit") {
		return limit
	}
	return a.cfg.Enrich.Limit
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runIngest(cmd *cobra.Command, flags ingestFlags) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := p.Ingest(ctx, a.ingestOptions(cmd, flags))
	printReports(rep)
	return err
}

func runEnrich(cmd *cobra.Command, limit int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := p.Enrich(ctx, a.enrichLimit(cmd, limit))
	printReports(rep)
	return err
}

func runOnce(cmd *cobra.Command, flags ingestFlags, limit int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	reports, err := p.Run(ctx, a.ingestOptions(cmd, flags), a.enrichLimit(cmd, limit))
	printReports(reports...)

	if mgr := a.alertManager(); mgr.HasNotifiers() {
		if nerr := mgr.Broadcast(ctx, scheduler.Summarize(reports, err)); nerr != nil {
			a.logger.Warn("notification failed", zap.Error(nerr))
		}
	}
	return err
}

func runDaemon(interval string, port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline()
	if err != nil {
		return err
	}

	every := a.cfg.Schedule.ParseInterval()
	if interval != "" {
		every, err = time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("parse interval %q: %w", interval, err)
		}
	}
	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := pipeline.IngestOptions{
		Source: pipeline.Source(a.cfg.Ingest.Source),
		Size:   a.cfg.Ingest.PageSize,
		Offset: a.cfg.Ingest.Offset,
	}
	sched := scheduler.New(p, a.alertManager(), a.logger, every, start, a.cfg.Enrich.Limit)

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("scheduler exited", zap.Error(err))
		}
	}()

	srv := server.New(a.db, a.registry, a.logger, port)
	err = srv.ListenAndServe(ctx)
	a.logger.Info("shutting down")
	return err
}

func runServe(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signalContext()
	defer cancel()

	return server.New(a.db, a.registry, a.logger, port).ListenAndServe(ctx)
}

func runProfiles(limit int, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	profiles, err := a.db.ListProfiles(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	return printProfiles(profiles, jsonOutput, "no profiles yet (try: bountyscope run)")
}

func runProfile(username string, id int64) error {
	if (username == "") == (id == 0) {
		return errors.New("profile: give exactly one of <username> or --id")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var p *record.Profile
	if id != 0 {
		p, err = a.db.GetProfileByID(ctx, id)
	} else {
		p, err = a.db.GetProfile(ctx, username)
	}
	if errors.Is(err, store.ErrNotFound) {
		return errors.New("profile not found")
	}
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	return printJSON(p)
}

func runStaged(limit int, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := a.db.ListPrimary(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("list staged records: %w", err)
	}
	if jsonOutput {
		return printJSON(recs)
	}
	if len(recs) == 0 {
		fmt.Println("nothing staged yet (try: bountyscope ingest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tSOURCE\tSTAGED")
	for _, r := range recs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Username, r.Source, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runStagedRecord(arg string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("staged: invalid id %q", arg)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.db.GetPrimary(context.Background(), id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("staged record %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("get staged record: %w", err)
	}
	return printJSON(rec)
}

func runSearch(query, field string, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	profiles, err := a.db.SearchProfiles(context.Background(), query, store.SearchField(field))
	if err != nil {
		return fmt.Errorf("search profiles: %w", err)
	}
	return printProfiles(profiles, jsonOutput, fmt.Sprintf("no profiles match %q", query))
}

func runStats(jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	st, err := a.db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	ps, err := a.db.ProfileStats(ctx)
	if err != nil {
		return fmt.Errorf("profile stats: %w", err)
	}

	if jsonOutput {
		return printJSON(map[string]any{"database": st, "profiles": ps})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "staged records\t%d\n", st.PrimaryCount)
	fmt.Fprintf(w, "unique sources\t%d\n", st.UniqueSources)
	fmt.Fprintf(w, "last staged\t%s\n", formatTime(st.LastPrimary))
	fmt.Fprintf(w, "profiles\t%d\n", st.ProfileCount)
	fmt.Fprintf(w, "last profile update\t%s\n", formatTime(st.LastProfile))
	fmt.Fprintf(w, "verified\t%d\n", ps.VerifiedUsers)
	fmt.Fprintf(w, "with resolved reports\t%d\n", ps.UsersWithReports)
	fmt.Fprintf(w, "avg resolved reports\t%.2f\n", ps.AvgReports)
	for i, r := range ps.TopReporters {
		fmt.Fprintf(w, "top %d\t%s (%d)\n", i+1, r.Username, r.Count)
	}
	return w.Flush()
}

func runDelete(username string, id, stagedID int64) error {
	targets := 0
	for _, set := range []bool{username != "", id != 0, stagedID != 0} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		return errors.New("delete: give exactly one of <username>, --id or --staged")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var deleted bool
	switch {
	case stagedID != 0:
		deleted, err = a.db.DeletePrimary(ctx, stagedID)
	case id != 0:
		deleted, err = a.db.DeleteProfileByID(ctx, id)
	default:
		deleted, err = a.db.DeleteProfile(ctx, username)
	}
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if !deleted {
		return errors.New("delete: no such record")
	}
	fmt.Fprintln(os.Stderr, "deleted")
	return nil
}

func runClear(yes bool, table string) error {
	var wipe func(*store.SQLiteStore, context.Context) error
	switch table {
	case "":
		wipe = (*store.SQLiteStore).Clear
	case "staged":
		wipe = (*store.SQLiteStore).ClearPrimary
	case "profiles":
		wipe = (*store.SQLiteStore).ClearProfiles
	default:
		return fmt.Errorf("clear: unknown table %q (want staged or profiles)", table)
	}
	if !yes {
		return errors.New("clear removes stored data; rerun with --yes")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := wipe(a.db, context.Background()); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	fmt.Fprintln(os.Stderr, "cleared")
	return nil
}

func printReports(reports ...*pipeline.Report) {
	for _, r := range reports {
		if r == nil {
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: %d processed, %d stored, %d skipped (%s)\n",
			r.Stage, r.Processed, r.Succeeded, r.Skipped, r.Duration.Round(time.Millisecond))
		if r.NextCursor != "" {
			fmt.Fprintf(os.Stderr, "  next cursor: %s\n", r.NextCursor)
		}
	}
}

func printProfiles(profiles []record.Profile, jsonOutput bool, empty string) error {
	if jsonOutput {
		return printJSON(profiles)
	}
	if len(profiles) == 0 {
		fmt.Println(empty)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tREPORTS\tVERIFIED\tLOCATION\tUPDATED")
	for _, p := range profiles {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%t\t%s\t%s\n",
			p.ID, p.Username, deref(p.Name), p.ResolvedReportCount, p.Verified,
			deref(p.Location), p.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
