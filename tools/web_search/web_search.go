package web_search

import (
	"context"
	"time"

	"github.com/researchly/marketscout/tools/web_search/models"
	"github.com/researchly/marketscout/tools/web_search/searxng"
	"github.com/researchly/marketscout/tools/web_search/tavily"
)

type WebSearcher interface {
	Discover(ctx context.Context, q string, opts models.Options) ([]models.Result, error)
}

type Provider string

const (
	SearxngProvider Provider = "searxng"
	TavilyProvider  Provider = "tavily"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

func NewWebSearcher(provider Provider, baseURL, apiKey string, timeout time.Duration) (WebSearcher, error) {
	switch provider {
	case SearxngProvider:
		return searxng.Search{BaseURL: baseURL, Timeout: timeout}, nil
	case TavilyProvider:
		return tavily.Search{ApiKey: apiKey, Timeout: timeout}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
