package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/elonfeng/bountyscope/internal/metrics"
	"github.com/elonfeng/bountyscope/internal/store"
	"github.com/elonfeng/bountyscope/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	loc := "Berlin"
	for _, p := range []*record.Profile{
		{Username: "alice", Location: &loc, Verified: true, ResolvedReportCount: 7},
		{Username: "bob", ResolvedReportCount: 2},
	} {
		_, err := s.UpsertProfile(ctx, p)
		require.NoError(t, err)
	}

	for _, name := range []string{"alice", "bob", "alice"} {
		_, err := s.AppendPrimary(ctx, &record.PrimaryRecord{
			Username: name,
			Source:   "HacktivityDocument",
			Payload:  record.Document{"reporter": map[string]any{"username": name}},
		})
		require.NoError(t, err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ProfilesUpserted.Add(2)

	srv := httptest.NewServer(New(s, reg, zaptest.NewLogger(t), 0).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, status int, dst any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, status, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if dst != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	getJSON(t, srv.URL+"/health", http.StatusOK, &body)
	require.Equal(t, "ok", body["status"])
}

func TestProfiles(t *testing.T) {
	srv := newTestServer(t)

	var list struct {
		Data  []record.Profile `json:"data"`
		Count int              `json:"count"`
	}
	getJSON(t, srv.URL+"/api/v1/profiles?limit=1", http.StatusOK, &list)
	require.Equal(t, 1, list.Count)

	getJSON(t, srv.URL+"/api/v1/profiles?limit=0", http.StatusOK, &list)
	require.Equal(t, 2, list.Count)

	getJSON(t, srv.URL+"/api/v1/profiles?limit=x", http.StatusBadRequest, nil)

	var p record.Profile
	getJSON(t, srv.URL+"/api/v1/profiles/alice", http.StatusOK, &p)
	require.Equal(t, "alice", p.Username)
	require.True(t, p.Verified)
	require.Equal(t, 7, p.ResolvedReportCount)

	getJSON(t, srv.URL+"/api/v1/profiles/nobody", http.StatusNotFound, nil)
}

func TestStaged(t *testing.T) {
	srv := newTestServer(t)

	var list struct {
		Data  []record.PrimaryRecord `json:"data"`
		Count int                    `json:"count"`
	}
	getJSON(t, srv.URL+"/api/v1/staged?limit=0", http.StatusOK, &list)
	require.Equal(t, 3, list.Count)
	getJSON(t, srv.URL+"/api/v1/staged?limit=2", http.StatusOK, &list)
	require.Equal(t, 2, list.Count)

	var rec record.PrimaryRecord
	getJSON(t, srv.URL+"/api/v1/staged/2", http.StatusOK, &rec)
	require.Equal(t, "bob", rec.Username)
	reporter, ok := rec.Payload.Object("reporter")
	require.True(t, ok)
	require.Equal(t, "bob", reporter.String("username"))

	getJSON(t, srv.URL+"/api/v1/staged/999", http.StatusNotFound, nil)
	getJSON(t, srv.URL+"/api/v1/staged/x", http.StatusBadRequest, nil)
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)

	var res struct {
		Data  []record.Profile `json:"data"`
		Count int              `json:"count"`
	}
	getJSON(t, srv.URL+"/api/v1/search?q=berl&field=location", http.StatusOK, &res)
	require.Equal(t, 1, res.Count)
	require.Equal(t, "alice", res.Data[0].Username)

	getJSON(t, srv.URL+"/api/v1/search", http.StatusBadRequest, nil)
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)

	var res struct {
		Database store.Stats        `json:"database"`
		Profiles store.ProfileStats `json:"profiles"`
	}
	getJSON(t, srv.URL+"/api/v1/stats", http.StatusOK, &res)
	require.Equal(t, 2, res.Database.ProfileCount)
	require.Equal(t, 1, res.Profiles.VerifiedUsers)
	require.Equal(t, 4.5, res.Profiles.AvgReports)
	require.Equal(t, "alice", res.Profiles.TopReporters[0].Username)
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "bountyscope_enrich_profiles_upserted_total 2")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/profiles", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
