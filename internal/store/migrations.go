package store

const schema = `
CREATE TABLE IF NOT EXISTS primary_records (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    username   TEXT NOT NULL,
    source     TEXT NOT NULL,
    json_info  TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_primary_username ON primary_records(username);
CREATE INDEX IF NOT EXISTS idx_primary_created_at ON primary_records(created_at);

CREATE TABLE IF NOT EXISTS profiles (
    id                              INTEGER PRIMARY KEY AUTOINCREMENT,
    username                        TEXT NOT NULL,
    name                            TEXT,
    intro                           TEXT,
    profile_activated               BOOLEAN NOT NULL DEFAULT 0,
    profile_created_at              TEXT,
    location                        TEXT,
    website                         TEXT,
    bio                             TEXT,
    bugcrowd_handle                 TEXT,
    hack_the_box_handle             TEXT,
    github_handle                   TEXT,
    gitlab_handle                   TEXT,
    linkedin_handle                 TEXT,
    twitter_handle                  TEXT,
    cleared                         BOOLEAN NOT NULL DEFAULT 0,
    verified                        BOOLEAN NOT NULL DEFAULT 0,
    open_for_employment             BOOLEAN,
    mark_as_company_on_leaderboards BOOLEAN NOT NULL DEFAULT 0,
    resolved_report_count           INTEGER NOT NULL DEFAULT 0,
    thanks_items_total_count        INTEGER NOT NULL DEFAULT 0,
    badges_json                     TEXT NOT NULL DEFAULT '[]',
    public_reviews_json             TEXT NOT NULL DEFAULT '[]',
    created_at                      DATETIME NOT NULL,
    updated_at                      DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username ON profiles(username);
CREATE INDEX IF NOT EXISTS idx_profiles_created_at ON profiles(created_at);
CREATE INDEX IF NOT EXISTS idx_profiles_reports ON profiles(resolved_report_count);
`
