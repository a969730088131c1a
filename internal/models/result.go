package models

// SearchResult is a single library search hit.
type SearchResult struct {
	Library LibrarySummary `json:"library"`
	Score   float64        `json:"score"`
	Rank    int            `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
