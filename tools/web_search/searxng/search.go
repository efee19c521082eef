package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/researchly/marketscout/internal/helpers"
	"github.com/researchly/marketscout/tools/web_search/models"
)

type Search struct {
	BaseURL string
	Timeout time.Duration
}

func (s Search) Discover(ctx context.Context, q string, opts models.Options) ([]models.Result, error) {
	// https://docs.searxng.org/dev/search_api.html
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("pageno", "1")
	categories := "general"
	if opts.Topic == "news" {
		categories = "news"
	}
	params.Set("categories", categories)
	if opts.TimeRange != "" {
		params.Set("time_range", opts.TimeRange)
	}

	endpoint := fmt.Sprintf("%s/search?%s", strings.TrimRight(s.BaseURL, "/"), params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: s.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng returned status %d", resp.StatusCode)
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

	k := opts.MaxResults
	if k <= 0 {
		k = 10
	}
	var out []models.Result
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{
			Title: r.Title, URL: r.URL, Content: helpers.CleanContent(r.Content), Score: r.Score,
		})
	}
	return out, nil
}
