package tavily

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/researchly/marketscout/tools/web_search/models"
)

type Search struct {
	ApiKey  string
	Timeout time.Duration
}

func (s Search) Discover(ctx context.Context, q string, opts models.Options) ([]models.Result, error) {
	// https://docs.tavily.com/docs/rest-api/api-reference
	k := opts.MaxResults
	if k <= 0 {
		k = 10
	}
	payload := map[string]any{
		"api_key":     s.ApiKey,
		"query":       q,
		"max_results": k,
	}
	if opts.Topic == "news" {
		payload["topic"] = "news"
	}
	if days := timeRangeDays(opts.TimeRange); days > 0 {
		payload["days"] = days
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.tavily.com/search", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: s.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.Result
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	return out, nil
}

func timeRangeDays(tr string) int {
	switch tr {
	case "day":
		return 1
	case "week":
		return 7
	case "month":
		return 30
	case "year":
		return 365
	}
	return 0
}
