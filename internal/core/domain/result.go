package domain

// SearchResult is the terminal output of one pipeline run, as handed to
// downstream consumers.
type SearchResult struct {
	UserID     string            `json:"user_id"`
	Query      string            `json:"query,omitempty"`
	SearchType SearchType        `json:"search_type"`
	Photos     []RankedCandidate `json:"photos"`
	Count      int               `json:"count"`
}
