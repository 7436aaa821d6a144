package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// Stats summarizes both tables.
type Stats struct {
	PrimaryCount  int        `json:"primary_count"`
	ProfileCount  int        `json:"profile_count"`
	UniqueSources int        `json:"unique_sources"`
	LastPrimary   *time.Time `json:"last_primary"`
	LastProfile   *time.Time `json:"last_profile"`
}

// Reporter is one entry of the top-reporters list.
type Reporter struct {
	Username string `db:"username" json:"username"`
	Count    int    `db:"resolved_report_count" json:"count"`
}

// ProfileStats aggregates the profiles table.
type ProfileStats struct {
	TotalUsers       int        `json:"total_users"`
	VerifiedUsers    int        `json:"verified_users"`
	UsersWithReports int        `json:"users_with_reports"`
	AvgReports       float64    `json:"avg_reports"`
	TopReporters     []Reporter `json:"top_reporters"`
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	counts := []struct {
		dst   *int
		query string
	}{
		{&st.PrimaryCount, "SELECT COUNT(*) FROM primary_records"},
		{&st.ProfileCount, "SELECT COUNT(*) FROM profiles"},
		{&st.UniqueSources, "SELECT COUNT(DISTINCT source) FROM primary_records"},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	var err error
	if st.LastPrimary, err = s.latest(ctx, "primary_records"); err != nil {
		return nil, err
	}
	if st.LastProfile, err = s.latest(ctx, "profiles"); err != nil {
		return nil, err
	}
	return &st, nil
}

// latest returns the newest created_at of table, or nil when it is empty.
func (s *SQLiteStore) latest(ctx context.Context, table string) (*time.Time, error) {
	var t time.Time
	err := s.db.GetContext(ctx, &t, "SELECT created_at FROM "+table+" ORDER BY created_at DESC, id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s: %w", table, err)
	}
	return &t, nil
}

func (s *SQLiteStore) ProfileStats(ctx context.Context) (*ProfileStats, error) {
	var st ProfileStats
	counts := []struct {
		dst   *int
		query string
	}{
		{&st.TotalUsers, "SELECT COUNT(*) FROM profiles"},
		{&st.VerifiedUsers, "SELECT COUNT(*) FROM profiles WHERE verified = 1"},
		{&st.UsersWithReports, "SELECT COUNT(*) FROM profiles WHERE resolved_report_count > 0"},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return nil, fmt.Errorf("profile stats: %w", err)
		}
	}

	var avg float64
	if err := s.db.GetContext(ctx, &avg, "SELECT COALESCE(AVG(resolved_report_count), 0.0) FROM profiles"); err != nil {
		return nil, fmt.Errorf("profile stats average: %w", err)
	}
	st.AvgReports = math.Round(avg*100) / 100

	st.TopReporters = []Reporter{}
	err := s.db.SelectContext(ctx, &st.TopReporters, `
		SELECT username, resolved_report_count FROM profiles
		WHERE resolved_report_count > 0
		ORDER BY resolved_report_count DESC, username
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("profile stats top reporters: %w", err)
	}
	return &st, nil
}
