package record

import (
	"errors"
	"time"
)

// Origin tags the API shape a staging record was built from.
type Origin string

const (
	// OriginActivityNode is used when a hacktivity node carries no __typename.
	OriginActivityNode Origin = "activity_node"
	// OriginLeaderboardEdge is used when a leaderboard edge carries no __typename.
	OriginLeaderboardEdge Origin = "leaderboard_edge"
)

var (
	// ErrNoReporter marks an activity node without reporter information
	// (redacted or malformed). Not a fault: the node is skipped.
	ErrNoReporter = errors.New("activity node has no reporter")
	// ErrNoIdentity marks a document whose username could not be found.
	ErrNoIdentity = errors.New("document has no username")
	// ErrProfileAbsent means the API returned no profile for a username.
	ErrProfileAbsent = errors.New("profile not available")
)

// PrimaryRecord is one raw node as ingested into the staging table.
type PrimaryRecord struct {
	ID          int64     `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	Source      Origin    `json:"source" db:"source"`
	Payload     Document  `json:"json_info" db:"-"`
	PayloadJSON string    `json:"-" db:"json_info"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Profile is the canonical snapshot of one hacker, one row per username.
type Profile struct {
	ID                          int64   `json:"id" db:"id"`
	Username                    string  `json:"username" db:"username"`
	Name                        *string `json:"name" db:"name"`
	Intro                       *string `json:"intro" db:"intro"`
	ProfileActivated            bool    `json:"profile_activated" db:"profile_activated"`
	ProfileCreatedAt            *string `json:"profile_created_at" db:"profile_created_at"`
	Location                    *string `json:"location" db:"location"`
	Website                     *string `json:"website" db:"website"`
	Bio                         *string `json:"bio" db:"bio"`
	BugcrowdHandle              *string `json:"bugcrowd_handle" db:"bugcrowd_handle"`
	HackTheBoxHandle            *string `json:"hack_the_box_handle" db:"hack_the_box_handle"`
	GitHubHandle                *string `json:"github_handle" db:"github_handle"`
	GitLabHandle                *string `json:"gitlab_handle" db:"gitlab_handle"`
	LinkedInHandle              *string `json:"linkedin_handle" db:"linkedin_handle"`
	TwitterHandle               *string `json:"twitter_handle" db:"twitter_handle"`
	Cleared                     bool    `json:"cleared" db:"cleared"`
	Verified                    bool    `json:"verified" db:"verified"`
	OpenForEmployment           *bool   `json:"open_for_employment" db:"open_for_employment"`
	MarkAsCompanyOnLeaderboards bool    `json:"mark_as_company_on_leaderboards" db:"mark_as_company_on_leaderboards"`
	ResolvedReportCount         int     `json:"resolved_report_count" db:"resolved_report_count"`
	ThanksItemsTotalCount       int     `json:"thanks_items_total_count" db:"thanks_items_total_count"`

	Badges            []any  `json:"badges" db:"-"`
	PublicReviews     []any  `json:"public_reviews" db:"-"`
	BadgesJSON        string `json:"-" db:"badges_json"`
	PublicReviewsJSON string `json:"-" db:"public_reviews_json"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
