package graphql

const hacktivitySearchQuery = `query HacktivitySearchQuery($queryString: String!, $from: Int, $size: Int, $sort: SortInput!) {
  search(index: CompleteHacktivityReportIndex, query_string: $queryString, from: $from, size: $size, sort: $sort) {
    __typename
    total_count
    nodes {
      __typename
      ... on HacktivityDocument {
        id
        _id
        reporter {
          id
          username
          name
        }
        cve_ids
        cwe
        severity_rating
        upvoted: upvoted_by_current_user
        public
        report {
          id
          databaseId: _id
          title
          substate
          url
          disclosed_at
          report_generated_content {
            hacktivity_summary
          }
        }
        votes
        team {
          handle
          name
          medium_profile_picture: profile_picture(size: medium)
          url
          currency
        }
        total_awarded_amount
        latest_disclosable_action
        latest_disclosable_activity_at
        submitted_at
        disclosed
        has_collaboration
      }
    }
  }
}`

const leaderboardQuery = `query LeaderboardQuery($first: Int, $after: String, $key: LeaderboardKeyEnum, $year: Int, $quarter: Int) {
  leaderboard(key: $key, year: $year, quarter: $quarter, first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      __typename
      cursor
      node {
        rank
        previous_rank
        reputation
        signal
        impact
        user {
          id
          username
          name
          profile_picture(size: medium)
        }
      }
    }
  }
}`

const userProfileQuery = `query UserProfileQuery($username: String!) {
  user(username: $username) {
    id
    username
    name
    intro
    profileActivated: profile_activated
    created_at
    location
    website
    bio
    bugcrowd_handle
    hack_the_box_handle
    github_handle
    gitlab_handle
    linkedin_handle
    twitter_handle
    cleared
    verified
    open_for_employment
    mark_as_company_on_leaderboards
    resolved_report_count
    thanks_items_total_count
    badges {
      edges {
        node {
          id
          created_at
          badge {
            name
            description
            image_url
          }
        }
      }
    }
    public_reviews: reviews(first: 100) {
      edges {
        node {
          id
          created_at
          feedback
          team {
            handle
            name
          }
        }
      }
    }
  }
}`

// HacktivitySearch pages through disclosed and undisclosed hacktivity,
// newest first.
func HacktivitySearch(size, offset int) *Request {
	return &Request{
		OperationName: "HacktivitySearchQuery",
		Query:         hacktivitySearchQuery,
		Variables: map[string]any{
			"queryString": "*:*",
			"from":        offset,
			"size":        size,
			"sort": map[string]any{
				"field":     "latest_disclosable_activity_at",
				"direction": "DESC",
			},
		},
	}
}

// Leaderboard fetches one page of the all-time reputation leaderboard.
// An empty cursor starts at the top.
func Leaderboard(size int, cursor string) *Request {
	vars := map[string]any{
		"first": size,
		"key":   "ALL_TIME_REPUTATION",
	}
	if cursor != "" {
		vars["after"] = cursor
	}
	return &Request{
		OperationName: "LeaderboardQuery",
		Query:         leaderboardQuery,
		Variables:     vars,
	}
}

// UserProfile fetches the public profile of one user.
func UserProfile(username string) *Request {
	return &Request{
		OperationName: "UserProfileQuery",
		Query:         userProfileQuery,
		Variables:     map[string]any{"username": username},
	}
}
