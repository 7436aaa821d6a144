package record

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) Document {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc Document
	require.NoError(t, dec.Decode(&doc))
	return doc
}

func TestNormalizeActivityNodesSkipsMissingReporter(t *testing.T) {
	nodes := []any{
		map[string]any{"__typename": "Disclosed", "id": "1", "reporter": map[string]any{"username": "alice"}},
		map[string]any{"__typename": "Undisclosed", "id": "2", "reporter": nil},
		map[string]any{"__typename": "Disclosed", "id": "3"},
		"not-an-object",
		map[string]any{"id": "4", "reporter": map[string]any{"username": "bob"}},
	}

	records := NormalizeActivityNodes(nodes)
	require.Len(t, records, 2)

	require.Equal(t, "alice", records[0].Username)
	require.Equal(t, Origin("Disclosed"), records[0].Source)
	require.Equal(t, "1", records[0].Payload["id"])

	require.Equal(t, "bob", records[1].Username)
	require.Equal(t, OriginActivityNode, records[1].Source)
}

func TestDecodeActivityNodeNoReporter(t *testing.T) {
	_, err := DecodeActivityNode(Document{"reporter": map[string]any{"name": "anon"}})
	require.ErrorIs(t, err, ErrNoReporter)
}

func TestNormalizeActivityNodesKeepsDuplicates(t *testing.T) {
	node := map[string]any{"__typename": "Disclosed", "reporter": map[string]any{"username": "alice"}}
	records := NormalizeActivityNodes([]any{node, node})
	require.Len(t, records, 2)
}

func TestNormalizeLeaderboardEdges(t *testing.T) {
	edges := []any{
		map[string]any{"__typename": "LeaderboardEntryEdge", "node": map[string]any{"user": map[string]any{"username": "carol"}}},
		map[string]any{"node": map[string]any{"user": map[string]any{"username": "dave"}}},
		map[string]any{"node": map[string]any{}},
	}

	records := NormalizeLeaderboardEdges(edges)
	require.Len(t, records, 2)
	require.Equal(t, "carol", records[0].Username)
	require.Equal(t, Origin("LeaderboardEntryEdge"), records[0].Source)
	require.Equal(t, "dave", records[1].Username)
	require.Equal(t, OriginLeaderboardEdge, records[1].Source)

	_, err := DecodeLeaderboardEdge(Document{"node": map[string]any{}})
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestNormalizeProfileAbsent(t *testing.T) {
	p, err := NormalizeProfile(nil)
	require.ErrorIs(t, err, ErrProfileAbsent)
	require.Nil(t, p)
}

func TestNormalizeProfileFull(t *testing.T) {
	doc := decode(t, `{
		"username": "bob",
		"name": "Bob",
		"intro": "hi",
		"profileActivated": true,
		"created_at": "2019-03-04T05:06:07.123Z",
		"location": "Berlin",
		"github_handle": "bobgh",
		"cleared": true,
		"verified": true,
		"open_for_employment": false,
		"resolved_report_count": 3,
		"thanks_items_total_count": 12,
		"badges": {"edges": [{"node": {"name": "First Blood"}}, {"node": {"name": "Hat Trick"}}]},
		"public_reviews": {"edges": [{"node": {"feedback": "great"}}]}
	}`)

	p, err := NormalizeProfile(doc)
	require.NoError(t, err)
	require.Equal(t, "bob", p.Username)
	require.Equal(t, "Bob", *p.Name)
	require.True(t, p.ProfileActivated)
	require.Equal(t, "2019-03-04T05:06:07.123Z", *p.ProfileCreatedAt)
	require.Equal(t, "bobgh", *p.GitHubHandle)
	require.Nil(t, p.TwitterHandle)
	require.True(t, p.Verified)
	require.NotNil(t, p.OpenForEmployment)
	require.False(t, *p.OpenForEmployment)
	require.Equal(t, 3, p.ResolvedReportCount)
	require.Equal(t, 12, p.ThanksItemsTotalCount)
	require.Len(t, p.Badges, 2)
	require.Len(t, p.PublicReviews, 1)
}

func TestNormalizeProfileDefaults(t *testing.T) {
	p, err := NormalizeProfile(Document{
		"username":       "eve",
		"badges":         "garbage",
		"public_reviews": map[string]any{"edges": nil},
	})
	require.NoError(t, err)
	require.False(t, p.ProfileActivated)
	require.False(t, p.Verified)
	require.False(t, p.Cleared)
	require.Nil(t, p.OpenForEmployment)
	require.Zero(t, p.ResolvedReportCount)
	require.NotNil(t, p.Badges)
	require.Empty(t, p.Badges)
	require.NotNil(t, p.PublicReviews)
	require.Empty(t, p.PublicReviews)

	p, err = NormalizeProfile(Document{"username": "frank"})
	require.NoError(t, err)
	require.NotNil(t, p.Badges)
	require.NotNil(t, p.PublicReviews)
}

func TestNormalizeProfileWithoutUsername(t *testing.T) {
	_, err := NormalizeProfile(Document{"name": "nobody"})
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestNormalizeTimestamp(t *testing.T) {
	cases := map[string]string{
		"2020-01-02T03:04:05Z":            "2020-01-02 03:04:05",
		"2020-01-02T03:04:05.987654Z":     "2020-01-02 03:04:05",
		"2020-01-02T03:04:05+02:00":       "2020-01-02 03:04:05",
		"2020-01-02T03:04:05+0200":        "2020-01-02 03:04:05",
		"2020-01-02T03:04:05.5-0330":      "2020-01-02 03:04:05",
		"20200102T030405Z":                "2020-01-02 03:04:05",
		"20200102T030405+0100":            "2020-01-02 03:04:05",
		"2020-01-02T03:04:05":             "2020-01-02 03:04:05",
		"2020-01-02 03:04:05":             "2020-01-02 03:04:05",
		"2020-01-02":                      "2020-01-02 00:00:00",
		"  2021-12-31T23:59:59.1-05:00  ": "2021-12-31 23:59:59",
	}
	for in, want := range cases {
		v := in
		got := NormalizeTimestamp(&v)
		require.NotNil(t, got, in)
		require.Equal(t, want, *got, in)
	}

	for _, bad := range []string{"", "   ", "yesterday", "2020-13-45T99:00:00Z"} {
		v := bad
		require.Nil(t, NormalizeTimestamp(&v), bad)
	}
	require.Nil(t, NormalizeTimestamp(nil))
}

func TestDocumentInt(t *testing.T) {
	d := Document{
		"a": 7,
		"b": float64(8),
		"c": json.Number("9"),
		"d": "10",
		"e": true,
	}
	require.Equal(t, 7, d.Int("a"))
	require.Equal(t, 8, d.Int("b"))
	require.Equal(t, 9, d.Int("c"))
	require.Equal(t, 10, d.Int("d"))
	require.Zero(t, d.Int("e"))
	require.Zero(t, d.Int("missing"))
}
