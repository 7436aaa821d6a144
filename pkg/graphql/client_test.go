package graphql

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{Endpoint: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestClientPost(t *testing.T) {
	var got Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"user":{"username":"bob","resolved_report_count":3}}}`))
	})

	resp, err := c.Post(context.Background(), UserProfile("bob"))
	require.NoError(t, err)
	require.Equal(t, "UserProfileQuery", got.OperationName)
	require.Equal(t, "bob", got.Variables["username"])

	user, ok := resp.Data.Object("user")
	require.True(t, ok)
	require.Equal(t, "bob", user.String("username"))
	require.Equal(t, json.Number("3"), user["resolved_report_count"])
}

func TestClientNonOKStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := c.Post(context.Background(), HacktivitySearch(10, 0))
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, http.StatusTooManyRequests, terr.StatusCode)
	require.Equal(t, "HacktivitySearchQuery", terr.Operation)
	require.Contains(t, err.Error(), "slow down")
}

func TestClientGraphQLErrorsWithoutData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"errors":[{"message":"rate limited"}]}`))
	})

	_, err := c.Post(context.Background(), UserProfile("bob"))
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Contains(t, err.Error(), "rate limited")
}

func TestClientNullUserIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"user":null}}`))
	})

	resp, err := c.Post(context.Background(), UserProfile("ghost"))
	require.NoError(t, err)
	_, ok := resp.Data.Object("user")
	require.False(t, ok)
}

func TestClientMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	_, err := c.Post(context.Background(), UserProfile("bob"))
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Post(context.Background(), UserProfile("bob"))
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Zero(t, terr.StatusCode)
}

func TestClientGzip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte(`{"data":{"search":{"nodes":[]}}}`))
		zw.Close()
	})

	resp, err := c.Post(context.Background(), HacktivitySearch(1, 0))
	require.NoError(t, err)
	search, ok := resp.Data.Object("search")
	require.True(t, ok)
	nodes, ok := search.List("nodes")
	require.True(t, ok)
	require.Empty(t, nodes)
}

func TestNewClientBadProxy(t *testing.T) {
	_, err := NewClient(Options{Proxy: "://bad"})
	require.Error(t, err)
}

func TestQueryBuilders(t *testing.T) {
	r := HacktivitySearch(25, 50)
	require.Equal(t, 25, r.Variables["size"])
	require.Equal(t, 50, r.Variables["from"])

	r = Leaderboard(10, "")
	require.NotContains(t, r.Variables, "after")
	r = Leaderboard(10, "abc")
	require.Equal(t, "abc", r.Variables["after"])
}
