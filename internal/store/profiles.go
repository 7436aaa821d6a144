package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/bountyscope/pkg/record"
)

const profileColumns = `id, username, name, intro, profile_activated, profile_created_at,
	location, website, bio, bugcrowd_handle, hack_the_box_handle,
	github_handle, gitlab_handle, linkedin_handle, twitter_handle,
	cleared, verified, open_for_employment, mark_as_company_on_leaderboards,
	resolved_report_count, thanks_items_total_count,
	badges_json, public_reviews_json, created_at, updated_at`

const insertProfile = `
	INSERT INTO profiles (
		username, name, intro, profile_activated, profile_created_at,
		location, website, bio, bugcrowd_handle, hack_the_box_handle,
		github_handle, gitlab_handle, linkedin_handle, twitter_handle,
		cleared, verified, open_for_employment, mark_as_company_on_leaderboards,
		resolved_report_count, thanks_items_total_count,
		badges_json, public_reviews_json, created_at, updated_at
	) VALUES (
		:username, :name, :intro, :profile_activated, :profile_created_at,
		:location, :website, :bio, :bugcrowd_handle, :hack_the_box_handle,
		:github_handle, :gitlab_handle, :linkedin_handle, :twitter_handle,
		:cleared, :verified, :open_for_employment, :mark_as_company_on_leaderboards,
		:resolved_report_count, :thanks_items_total_count,
		:badges_json, :public_reviews_json, :created_at, :updated_at
	)`

// id, username and created_at are deliberately absent from the SET list.
const updateProfile = `
	UPDATE profiles SET
		name = :name,
		intro = :intro,
		profile_activated = :profile_activated,
		profile_created_at = :profile_created_at,
		location = :location,
		website = :website,
		bio = :bio,
		bugcrowd_handle = :bugcrowd_handle,
		hack_the_box_handle = :hack_the_box_handle,
		github_handle = :github_handle,
		gitlab_handle = :gitlab_handle,
		linkedin_handle = :linkedin_handle,
		twitter_handle = :twitter_handle,
		cleared = :cleared,
		verified = :verified,
		open_for_employment = :open_for_employment,
		mark_as_company_on_leaderboards = :mark_as_company_on_leaderboards,
		resolved_report_count = :resolved_report_count,
		thanks_items_total_count = :thanks_items_total_count,
		badges_json = :badges_json,
		public_reviews_json = :public_reviews_json,
		updated_at = :updated_at
	WHERE id = :id`

var searchColumns = map[SearchField]string{
	SearchUsername: "username",
	SearchName:     "name",
	SearchLocation: "location",
	SearchGitHub:   "github_handle",
}

// UpsertProfile inserts the profile if its username is new, otherwise
// overwrites every attribute of the existing row except id and created_at.
// It returns the row id, which is stable across updates.
//
// The lookup and the write share one immediate transaction. The unique index
// on username makes a racing insert from another process fail instead of
// creating a second row.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *record.Profile) (int64, error) {
	row := *p
	row.ProfileCreatedAt = record.NormalizeTimestamp(p.ProfileCreatedAt)

	var err error
	if row.BadgesJSON, err = marshalSequence(p.Badges); err != nil {
		return 0, fmt.Errorf("marshal badges for %s: %w", p.Username, err)
	}
	if row.PublicReviewsJSON, err = marshalSequence(p.PublicReviews); err != nil {
		return 0, fmt.Errorf("marshal public reviews for %s: %w", p.Username, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert %s: %w", p.Username, err)
	}
	defer tx.Rollback()

	var existing struct {
		ID        int64     `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	now := s.timestamp()
	row.UpdatedAt = now

	err = tx.GetContext(ctx, &existing, "SELECT id, created_at FROM profiles WHERE username = ?", p.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		row.CreatedAt = now
		res, err := tx.NamedExecContext(ctx, insertProfile, &row)
		if err != nil {
			return 0, fmt.Errorf("insert profile %s: %w", p.Username, err)
		}
		if row.ID, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("insert profile %s: %w", p.Username, err)
		}
	case err != nil:
		return 0, fmt.Errorf("lookup profile %s: %w", p.Username, err)
	default:
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		if _, err := tx.NamedExecContext(ctx, updateProfile, &row); err != nil {
			return 0, fmt.Errorf("update profile %s: %w", p.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert %s: %w", p.Username, err)
	}

	p.ID = row.ID
	p.ProfileCreatedAt = row.ProfileCreatedAt
	p.BadgesJSON = row.BadgesJSON
	p.PublicReviewsJSON = row.PublicReviewsJSON
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	return row.ID, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, username string) (*record.Profile, error) {
	return s.getProfile(ctx, "username = ?", username)
}

func (s *SQLiteStore) GetProfileByID(ctx context.Context, id int64) (*record.Profile, error) {
	return s.getProfile(ctx, "id = ?", id)
}

func (s *SQLiteStore) getProfile(ctx context.Context, where string, arg any) (*record.Profile, error) {
	var p record.Profile
	err := s.db.GetContext(ctx, &p, "SELECT "+profileColumns+" FROM profiles WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %v: %w", arg, err)
	}
	decodeSequences(&p)
	return &p, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context, limit int) ([]record.Profile, error) {
	var profiles []record.Profile
	err := s.db.SelectContext(ctx, &profiles,
		"SELECT "+profileColumns+" FROM profiles ORDER BY created_at DESC, id DESC LIMIT ?", noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	for i := range profiles {
		decodeSequences(&profiles[i])
	}
	return profiles, nil
}

// SearchProfiles does a substring match on one of the SearchField columns.
// Unknown fields fall back to username.
func (s *SQLiteStore) SearchProfiles(ctx context.Context, query string, field SearchField) ([]record.Profile, error) {
	column, ok := searchColumns[field]
	if !ok {
		column = searchColumns[SearchUsername]
	}

	var profiles []record.Profile
	err := s.db.SelectContext(ctx, &profiles,
		"SELECT "+profileColumns+" FROM profiles WHERE "+column+" LIKE '%' || ? || '%' ORDER BY username",
		query)
	if err != nil {
		return nil, fmt.Errorf("search profiles by %s: %w", column, err)
	}
	for i := range profiles {
		decodeSequences(&profiles[i])
	}
	return profiles, nil
}

func (s *SQLiteStore) DeleteProfile(ctx context.Context, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE username = ?", username)
	if err != nil {
		return false, fmt.Errorf("delete profile %s: %w", username, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) DeleteProfileByID(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete profile %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) ClearProfiles(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profiles"); err != nil {
		return fmt.Errorf("clear profiles: %w", err)
	}
	return nil
}

func marshalSequence(seq []any) (string, error) {
	if seq == nil {
		seq = []any{}
	}
	b, err := json.Marshal(seq)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeSequences(p *record.Profile) {
	p.Badges = unmarshalSequence(p.BadgesJSON)
	p.PublicReviews = unmarshalSequence(p.PublicReviewsJSON)
}

func unmarshalSequence(s string) []any {
	var seq []any
	if err := json.Unmarshal([]byte(s), &seq); err != nil || seq == nil {
		return []any{}
	}
	return seq
}
