package record

import (
	"strings"
	"time"
)

// DecodeActivityNode builds a staging record from a hacktivity search node.
func DecodeActivityNode(node Document) (PrimaryRecord, error) {
	reporter, ok := node.Object("reporter")
	if !ok {
		return PrimaryRecord{}, ErrNoReporter
	}
	username := reporter.String("username")
	if username == "" {
		return PrimaryRecord{}, ErrNoReporter
	}
	return PrimaryRecord{
		Username: username,
		Source:   originOf(node, OriginActivityNode),
		Payload:  node,
	}, nil
}

// NormalizeActivityNodes decodes nodes in order, dropping the ones without
// reporter information. Non-object entries are dropped as well.
func NormalizeActivityNodes(nodes []any) []PrimaryRecord {
	records := make([]PrimaryRecord, 0, len(nodes))
	for _, n := range nodes {
		doc, ok := AsDocument(n)
		if !ok {
			continue
		}
		rec, err := DecodeActivityNode(doc)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// DecodeLeaderboardEdge builds a staging record from a leaderboard edge,
// where the username sits at node.user.username.
func DecodeLeaderboardEdge(edge Document) (PrimaryRecord, error) {
	user, ok := edge.Object("node", "user")
	if !ok || user.String("username") == "" {
		return PrimaryRecord{}, ErrNoIdentity
	}
	return PrimaryRecord{
		Username: user.String("username"),
		Source:   originOf(edge, OriginLeaderboardEdge),
		Payload:  edge,
	}, nil
}

// NormalizeLeaderboardEdges decodes edges in order.
func NormalizeLeaderboardEdges(edges []any) []PrimaryRecord {
	records := make([]PrimaryRecord, 0, len(edges))
	for _, e := range edges {
		doc, ok := AsDocument(e)
		if !ok {
			continue
		}
		rec, err := DecodeLeaderboardEdge(doc)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// NormalizeProfile maps a user document onto a Profile. A nil document
// yields ErrProfileAbsent.
func NormalizeProfile(user Document) (*Profile, error) {
	if user == nil {
		return nil, ErrProfileAbsent
	}
	username := user.String("username")
	if username == "" {
		return nil, ErrNoIdentity
	}

	return &Profile{
		Username:                    username,
		Name:                        user.OptString("name"),
		Intro:                       user.OptString("intro"),
		ProfileActivated:            user.Bool("profileActivated"),
		ProfileCreatedAt:            user.OptString("created_at"),
		Location:                    user.OptString("location"),
		Website:                     user.OptString("website"),
		Bio:                         user.OptString("bio"),
		BugcrowdHandle:              user.OptString("bugcrowd_handle"),
		HackTheBoxHandle:            user.OptString("hack_the_box_handle"),
		GitHubHandle:                user.OptString("github_handle"),
		GitLabHandle:                user.OptString("gitlab_handle"),
		LinkedInHandle:              user.OptString("linkedin_handle"),
		TwitterHandle:               user.OptString("twitter_handle"),
		Cleared:                     user.Bool("cleared"),
		Verified:                    user.Bool("verified"),
		OpenForEmployment:           user.OptBool("open_for_employment"),
		MarkAsCompanyOnLeaderboards: user.Bool("mark_as_company_on_leaderboards"),
		ResolvedReportCount:         user.Int("resolved_report_count"),
		ThanksItemsTotalCount:       user.Int("thanks_items_total_count"),
		Badges:                      user.Edges("badges"),
		PublicReviews:               user.Edges("public_reviews"),
	}, nil
}

const storedTimestamp = "2006-01-02 15:04:05"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"20060102T150405Z07:00",
	"20060102T150405-0700",
	"20060102T150405",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeTimestamp rewrites an ISO-8601 timestamp as "YYYY-MM-DD HH:MM:SS"
// in the timestamp's own wall-clock time. Empty or unparseable input gives nil.
func NormalizeTimestamp(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		out := t.Format(storedTimestamp)
		return &out
	}
	return nil
}

func originOf(doc Document, fallback Origin) Origin {
	if tn := doc.String("__typename"); tn != "" {
		return Origin(tn)
	}
	return fallback
}
