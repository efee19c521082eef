package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/researchly/marketscout/internal/cache"
	"github.com/researchly/marketscout/internal/store"
	"github.com/researchly/marketscout/models"
	"github.com/researchly/marketscout/provider"
	fetchmodels "github.com/researchly/marketscout/tools/web_fetch/models"
	searchmodels "github.com/researchly/marketscout/tools/web_search/models"
)

const (
	maxContextChars = 12000
	maxPerResult    = 500
	maxPerCategory  = 5
)

// Searcher is the web-search gateway consumed by the engine.
type Searcher interface {
	Discover(ctx context.Context, q string, opts searchmodels.Options) ([]searchmodels.Result, error)
}

// Fetcher is the crawl/extract gateway consumed by the engine.
type Fetcher interface {
	Exec(ctx context.Context, url string) (fetchmodels.Result, error)
}

// Archiver persists terminal jobs outside the in-memory store. Optional.
type Archiver interface {
	SaveTerminal(ctx context.Context, job models.Job) error
}

// Options carries per-gateway tuning for the engine.
type Options struct {
	SearchTimeout time.Duration
	FetchTimeout  time.Duration
	LLMTimeout    time.Duration
	MaxResults    int
}

// Engine drives a job through its state machine: it advances status in the
// store, consults the result cache before every gateway call, and writes the
// terminal outcome back. Gateway failures become a terminal failed state and
// never propagate to pollers.
type Engine struct {
	store    *store.Store
	cache    *cache.Cache
	searcher Searcher
	fetcher  Fetcher
	llm      provider.Provider
	archive  Archiver
	logger   *log.Logger
	opts     Options

	// Optional observation hooks for metrics.
	OnCompleted func(kind models.JobKind)
	OnFailed    func(kind models.JobKind)
}

// NewEngine wires the pipeline executor. archive may be nil.
func NewEngine(st *store.Store, c *cache.Cache, searcher Searcher, fetcher Fetcher, llm provider.Provider, archive Archiver, logger *log.Logger, opts Options) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 30 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 45 * time.Second
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 120 * time.Second
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	return &Engine{
		store:    st,
		cache:    c,
		searcher: searcher,
		fetcher:  fetcher,
		llm:      llm,
		archive:  archive,
		logger:   logger,
		opts:     opts,
	}
}

// Run executes the pipeline for jobID. Within one job, stages run strictly
// sequentially; a NotFound from the store means the job was deleted while
// running and the result is dropped.
func (e *Engine) Run(ctx context.Context, jobID string) {
	job, err := e.store.Get(jobID)
	if err != nil {
		e.logger.Printf("[%s] job vanished before start: %v", jobID, err)
		return
	}

	switch job.Kind {
	case models.KindResearch:
		err = e.runResearch(ctx, job)
	case models.KindSearch:
		err = e.runSearch(ctx, job)
	case models.KindCrawl, models.KindExtract:
		err = e.runFetch(ctx, job)
	default:
		err = fmt.Errorf("unsupported job kind: %s", job.Kind)
	}

	if err != nil {
		e.fail(job, err)
		return
	}
	if e.OnCompleted != nil {
		e.OnCompleted(job.Kind)
	}
	e.archiveTerminal(ctx, jobID)
}

func (e *Engine) fail(job models.Job, cause error) {
	e.logger.Printf("[%s] %s job failed: %v", job.JobID, job.Kind, cause)
	if err := e.store.Fail(job.JobID, cause.Error()); err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return // deleted while running
		}
		e.logger.Printf("[%s] could not record failure: %v", job.JobID, err)
		return
	}
	if e.OnFailed != nil {
		e.OnFailed(job.Kind)
	}
	e.archiveTerminal(context.Background(), job.JobID)
}

func (e *Engine) archiveTerminal(ctx context.Context, jobID string) {
	if e.archive == nil {
		return
	}
	job, err := e.store.Get(jobID)
	if err != nil {
		return
	}
	if err := e.archive.SaveTerminal(ctx, job); err != nil {
		e.logger.Printf("[%s] archive write failed: %v", jobID, err)
	}
}

// --- research pipeline ---

type strategyQuery struct {
	Category  string
	Query     string
	Topic     string
	TimeRange string
}

func strategyQueries(company string) []strategyQuery {
	return []strategyQuery{
		{Category: "overview", Query: company + " overview products services market position", Topic: "general"},
		{Category: "news", Query: company + " latest news acquisitions partnerships", Topic: "news", TimeRange: "month"},
		{Category: "financial", Query: company + " revenue growth funding valuation", Topic: "general"},
		{Category: "competitors", Query: company + " competitors industry comparison market share", Topic: "general"},
	}
}

func (e *Engine) runResearch(ctx context.Context, job models.Job) error {
	started := time.Now()

	// Stage 1: parallel strategic searches.
	if err := e.store.SetStatus(job.JobID, models.StatusSearching); err != nil {
		return err
	}
	e.logger.Printf("[%s] stage 1: searching for %q", job.JobID, job.Query)

	queries := strategyQueries(job.Query)
	buckets := make([][]searchmodels.Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, sq := range queries {
		i, sq := i, sq
		g.Go(func() error {
			hits, err := e.searchViaCache(gctx, sq.Query, searchmodels.Options{
				MaxResults: e.opts.MaxResults,
				Topic:      sq.Topic,
				TimeRange:  sq.TimeRange,
			})
			if err != nil {
				return &models.UpstreamError{Gateway: "search", Err: err}
			}
			buckets[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	searchContext := formatSearchContext(queries, buckets)
	sources := collectSources(queries, buckets)
	e.logger.Printf("[%s] search complete: %d sources, %d chars of context", job.JobID, len(sources), len(searchContext))

	// Stage 2: SWOT and trends analysis.
	if err := e.store.SetStatus(job.JobID, models.StatusAnalyzing); err != nil {
		return err
	}
	e.logger.Printf("[%s] stage 2: analyzing", job.JobID)

	swot, err := e.generateSWOT(ctx, job.Query, searchContext)
	if err != nil {
		return err
	}
	trends, err := e.generateTrends(ctx, job.Query, searchContext)
	if err != nil {
		return err
	}
	e.logger.Printf("[%s] analysis: %dS/%dW/%dO/%dT, %d trends",
		job.JobID, len(swot.Strengths), len(swot.Weaknesses), len(swot.Opportunities), len(swot.Threats), len(trends))

	// Stage 3: compile the final report.
	if err := e.store.SetStatus(job.JobID, models.StatusCompiling); err != nil {
		return err
	}
	e.logger.Printf("[%s] stage 3: compiling report", job.JobID)

	report, err := e.compileReport(ctx, job.Query, searchContext, swot, trends)
	if err != nil {
		return err
	}
	report.Sources = sources

	if err := e.store.CompleteResearch(job.JobID, report); err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			e.logger.Printf("[%s] deleted while running, dropping report", job.JobID)
			return nil
		}
		return err
	}
	e.logger.Printf("[%s] research complete for %q in %.1fs", job.JobID, job.Query, time.Since(started).Seconds())
	return nil
}

func (e *Engine) generateSWOT(ctx context.Context, company, searchContext string) (models.SWOTAnalysis, error) {
	raw, err := e.complete(ctx, systemAnalyst, swotPrompt(company, searchContext))
	if err != nil {
		return models.SWOTAnalysis{}, err
	}
	var data map[string]interface{}
	if err := parseJSONResponse(raw, &data); err != nil {
		return models.SWOTAnalysis{}, &models.UpstreamError{Gateway: "generation", Err: fmt.Errorf("malformed SWOT payload: %w", err)}
	}
	return extractSWOT(data), nil
}

func (e *Engine) generateTrends(ctx context.Context, company, searchContext string) ([]models.Trend, error) {
	raw, err := e.complete(ctx, systemIntelligence, trendsPrompt(company, searchContext))
	if err != nil {
		return nil, err
	}
	var trends []models.Trend
	if err := parseJSONResponse(raw, &trends); err != nil {
		// A trend list is enrichment, not a hard requirement.
		e.logger.Printf("malformed trends payload, continuing without trends: %v", err)
		return nil, nil
	}
	for i := range trends {
		trends[i].Relevance = normalizeRelevance(trends[i].Relevance)
	}
	return trends, nil
}

func (e *Engine) compileReport(ctx context.Context, company, searchContext string, swot models.SWOTAnalysis, trends []models.Trend) (*models.Report, error) {
	swotJSON, _ := json.MarshalIndent(swot, "", "  ")
	trendsJSON, _ := json.MarshalIndent(trends, "", "  ")

	raw, err := e.complete(ctx, systemWriter, reportPrompt(company, searchContext, string(swotJSON), string(trendsJSON)))
	if err != nil {
		return nil, err
	}
	var compiled struct {
		CompanyOverview      string   `json:"company_overview"`
		CompetitiveLandscape string   `json:"competitive_landscape"`
		KeyFindings          []string `json:"key_findings"`
		SuggestedQuestions   []string `json:"suggested_questions"`
	}
	if err := parseJSONResponse(raw, &compiled); err != nil {
		return nil, &models.UpstreamError{Gateway: "generation", Err: fmt.Errorf("malformed report payload: %w", err)}
	}
	return &models.Report{
		CompanyOverview:      compiled.CompanyOverview,
		SWOT:                 swot,
		Trends:               trends,
		CompetitiveLandscape: compiled.CompetitiveLandscape,
		KeyFindings:          compiled.KeyFindings,
		SuggestedQuestions:   compiled.SuggestedQuestions,
	}, nil
}

func (e *Engine) complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.LLMTimeout)
	defer cancel()
	out, err := e.llm.Complete(ctx, []provider.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", &models.UpstreamError{Gateway: "generation", Err: err}
	}
	return out, nil
}

// --- single-call kinds ---

func (e *Engine) runSearch(ctx context.Context, job models.Job) error {
	hits, err := e.searchViaCache(ctx, job.Query, searchmodels.Options{MaxResults: e.opts.MaxResults, Topic: "general"})
	if err != nil {
		return &models.UpstreamError{Gateway: "search", Err: err}
	}
	result := &models.OperationResult{Kind: models.KindSearch, Search: toSearchHits(dedupeHits(hits))}
	if err := e.store.CompleteOperation(job.JobID, result); err != nil && !errors.Is(err, models.ErrJobNotFound) {
		return err
	}
	return nil
}

func (e *Engine) runFetch(ctx context.Context, job models.Job) error {
	fingerprint := cache.Fingerprint(string(job.Kind), job.Query)
	payload, err := e.cache.GetOrFetch(ctx, fingerprint, func(ctx context.Context) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
		defer cancel()
		page, err := e.fetcher.Exec(ctx, job.Query)
		if err != nil {
			return nil, err
		}
		return json.Marshal(page)
	})
	if err != nil {
		return &models.UpstreamError{Gateway: "fetch", Err: err}
	}
	var fetched fetchmodels.Result
	if err := json.Unmarshal(payload, &fetched); err != nil {
		return &models.UpstreamError{Gateway: "fetch", Err: fmt.Errorf("malformed cached payload: %w", err)}
	}
	page := models.FetchedPage{URL: fetched.URL, Title: fetched.Title, Text: fetched.Text, Excerpt: fetched.Excerpt}
	result := &models.OperationResult{Kind: job.Kind, Page: &page}
	if err := e.store.CompleteOperation(job.JobID, result); err != nil && !errors.Is(err, models.ErrJobNotFound) {
		return err
	}
	return nil
}

// --- cache-backed gateway calls ---

func (e *Engine) searchViaCache(ctx context.Context, query string, opts searchmodels.Options) ([]searchmodels.Result, error) {
	fingerprint := cache.Fingerprint("search", query, opts.Topic, opts.TimeRange, strconv.Itoa(opts.MaxResults))
	payload, err := e.cache.GetOrFetch(ctx, fingerprint, func(ctx context.Context) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
		defer cancel()
		hits, err := e.searcher.Discover(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hits)
	})
	if err != nil {
		return nil, err
	}
	var hits []searchmodels.Result
	if err := json.Unmarshal(payload, &hits); err != nil {
		return nil, fmt.Errorf("malformed cached payload: %w", err)
	}
	return hits, nil
}

// --- aggregation ---

func toSearchHits(results []searchmodels.Result) []models.SearchHit {
	hits := make([]models.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.SearchHit{URL: r.URL, Title: r.Title, Content: r.Content})
	}
	return hits
}

// collectSources flattens per-category results into a deduplicated source
// list, preserving category order.
func collectSources(queries []strategyQuery, buckets [][]searchmodels.Result) []models.Source {
	seen := make(map[string]struct{})
	now := time.Now().UTC()
	var sources []models.Source
	for i, sq := range queries {
		for _, hit := range buckets[i] {
			if hit.URL == "" {
				continue
			}
			if _, ok := seen[hit.URL]; ok {
				continue
			}
			seen[hit.URL] = struct{}{}
			sources = append(sources, models.Source{
				URL:       hit.URL,
				Title:     hit.Title,
				Category:  sq.Category,
				ScrapedAt: now,
			})
		}
	}
	return sources
}

// formatSearchContext renders the aggregated results into one text block
// sized for the generation provider's context window.
func formatSearchContext(queries []strategyQuery, buckets [][]searchmodels.Result) string {
	var b strings.Builder
	total := 0
	for i, sq := range queries {
		b.WriteString("\n## " + strings.ToUpper(sq.Category) + "\n\n")
		count := 0
		for _, hit := range buckets[i] {
			if total >= maxContextChars || count >= maxPerCategory {
				break
			}
			text := hit.Content
			if len(text) > maxPerResult {
				text = text[:maxPerResult]
			}
			title := hit.Title
			if title == "" {
				title = "Untitled"
			}
			b.WriteString("### " + title + "\n")
			b.WriteString("Source: " + hit.URL + "\n")
			b.WriteString(text + "\n\n")
			total += len(text) + len(title)
			count++
		}
	}
	return b.String()
}

// dedupeHits removes duplicate URLs, keeping the highest-scored occurrence.
func dedupeHits(hits []searchmodels.Result) []searchmodels.Result {
	best := make(map[string]searchmodels.Result)
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		cur, ok := best[h.URL]
		if !ok {
			order = append(order, h.URL)
			best[h.URL] = h
			continue
		}
		if h.Score > cur.Score {
			best[h.URL] = h
		}
	}
	out := make([]searchmodels.Result, 0, len(order))
	for _, u := range order {
		out = append(out, best[u])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
