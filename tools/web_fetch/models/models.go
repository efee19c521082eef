package models

// Result is the extracted content of a fetched URL.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline,omitempty"`
	Text     string `json:"text"`
	Excerpt  string `json:"excerpt,omitempty"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}
