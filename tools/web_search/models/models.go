package models

// Result is one row returned by a web-search provider.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Options narrows a search without being provider-specific.
type Options struct {
	MaxResults int
	Topic      string // "general" or "news"
	TimeRange  string // "day", "week", "month", "year" or empty
}
