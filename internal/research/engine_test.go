package research

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/researchly/marketscout/internal/cache"
	"github.com/researchly/marketscout/internal/cache/inmemory"
	"github.com/researchly/marketscout/internal/store"
	"github.com/researchly/marketscout/models"
	"github.com/researchly/marketscout/provider"
	fetchmodels "github.com/researchly/marketscout/tools/web_fetch/models"
	searchmodels "github.com/researchly/marketscout/tools/web_search/models"
)

type stubSearcher struct {
	calls int32
	err   error
}

func (s *stubSearcher) Discover(ctx context.Context, q string, opts searchmodels.Options) ([]searchmodels.Result, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return []searchmodels.Result{
		{Title: "Result for " + q, URL: "https://example.com/" + fmt.Sprint(len(q)), Content: "Acme builds widgets and holds a strong regional position.", Score: 0.9},
		{Title: "Shared", URL: "https://example.com/shared", Content: "Industry backgrounder.", Score: 0.5},
	}, nil
}

type stubFetcher struct {
	calls int32
	err   error
}

func (f *stubFetcher) Exec(ctx context.Context, url string) (fetchmodels.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return fetchmodels.Result{}, f.err
	}
	return fetchmodels.Result{URL: url, Title: "Page", Text: "extracted body", Excerpt: "extracted"}, nil
}

// stubLLM scripts a full research conversation, dispatching on the system
// prompt. failOn short-circuits one stage to exercise failure handling.
type stubLLM struct {
	failOn    string
	onCompile func()
}

func (l *stubLLM) Healthy(ctx context.Context) bool { return true }

func (l *stubLLM) Complete(ctx context.Context, msgs []provider.Message) (string, error) {
	if len(msgs) == 0 {
		return "", fmt.Errorf("no messages")
	}
	system := msgs[0].Content
	switch {
	case system == systemAnalyst:
		if l.failOn == "swot" {
			return "", fmt.Errorf("model unavailable")
		}
		return `{"strengths": ["brand"], "weaknesses": ["debt"], "opportunities": ["expansion"], "threats": ["rivals"]}`, nil
	case system == systemIntelligence:
		if l.failOn == "trends" {
			return "not json at all", nil
		}
		return `[{"title": "Automation", "description": "Widgets go robotic", "relevance": "HIGH"}]`, nil
	case system == systemWriter:
		if l.onCompile != nil {
			l.onCompile()
		}
		if l.failOn == "report" {
			return "", fmt.Errorf("model unavailable")
		}
		return `{"company_overview": "Acme overview.", "competitive_landscape": "Crowded.", "key_findings": ["finding one"], "suggested_questions": ["What is Acme's runway?"]}`, nil
	default:
		return "", fmt.Errorf("unexpected system prompt")
	}
}

func newTestEngine(t *testing.T, st *store.Store, searcher Searcher, fetcher Fetcher, llm provider.Provider) *Engine {
	t.Helper()
	c := cache.New(inmemory.NewBackend(), time.Minute)
	return NewEngine(st, c, searcher, fetcher, llm, nil, nil, Options{MaxResults: 5})
}

func TestRunResearchHappyPath(t *testing.T) {
	st := store.New()
	job, err := st.Create(models.KindResearch, "Acme Corp")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	eng := newTestEngine(t, st, &stubSearcher{}, &stubFetcher{}, &stubLLM{})
	completed := 0
	eng.OnCompleted = func(models.JobKind) { completed++ }

	eng.Run(context.Background(), job.JobID)

	got, err := st.Get(job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s (error %q)", got.Status, got.Error)
	}
	if got.Report == nil {
		t.Fatalf("expected a report")
	}
	if got.Report.CompanyOverview == "" {
		t.Fatalf("expected an overview")
	}
	if len(got.Report.SWOT.Strengths) == 0 || len(got.Report.SWOT.Threats) == 0 {
		t.Fatalf("expected populated SWOT quadrants: %+v", got.Report.SWOT)
	}
	if len(got.Report.Trends) != 1 || got.Report.Trends[0].Relevance != "high" {
		t.Fatalf("expected normalized trends, got %+v", got.Report.Trends)
	}
	if len(got.Report.Sources) == 0 {
		t.Fatalf("expected sources collected from search results")
	}
	if len(got.Report.SuggestedQuestions) != 1 {
		t.Fatalf("expected suggested questions, got %+v", got.Report.SuggestedQuestions)
	}
	if got.QARemaining != models.QuestionQuota {
		t.Fatalf("expected question quota %d, got %d", models.QuestionQuota, got.QARemaining)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}
	if completed != 1 {
		t.Fatalf("expected completion hook to fire once, got %d", completed)
	}
}

func TestRunResearchSearchFailure(t *testing.T) {
	st := store.New()
	job, _ := st.Create(models.KindResearch, "Acme Corp")
	eng := newTestEngine(t, st, &stubSearcher{err: fmt.Errorf("searxng unreachable")}, &stubFetcher{}, &stubLLM{})
	failed := 0
	eng.OnFailed = func(models.JobKind) { failed++ }

	eng.Run(context.Background(), job.JobID)

	got, _ := st.Get(job.JobID)
	if got.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.Error, "search gateway") {
		t.Fatalf("expected a search gateway cause, got %q", got.Error)
	}
	if got.Report != nil {
		t.Fatalf("expected no report on failure")
	}
	if failed != 1 {
		t.Fatalf("expected failure hook to fire once, got %d", failed)
	}
}

func TestRunResearchGenerationFailure(t *testing.T) {
	st := store.New()
	job, _ := st.Create(models.KindResearch, "Acme Corp")
	eng := newTestEngine(t, st, &stubSearcher{}, &stubFetcher{}, &stubLLM{failOn: "swot"})

	eng.Run(context.Background(), job.JobID)

	got, _ := st.Get(job.JobID)
	if got.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.Error, "generation gateway") {
		t.Fatalf("expected a generation gateway cause, got %q", got.Error)
	}
	if got.Report != nil {
		t.Fatalf("expected no partial report")
	}
}

func TestRunResearchToleratesMalformedTrends(t *testing.T) {
	st := store.New()
	job, _ := st.Create(models.KindResearch, "Acme Corp")
	eng := newTestEngine(t, st, &stubSearcher{}, &stubFetcher{}, &stubLLM{failOn: "trends"})

	eng.Run(context.Background(), job.JobID)

	got, _ := st.Get(job.JobID)
	if got.Status != models.StatusCompleted {
		t.Fatalf("expected completed without trends, got %s (error %q)", got.Status, got.Error)
	}
	if len(got.Report.Trends) != 0 {
		t.Fatalf("expected empty trends, got %+v", got.Report.Trends)
	}
}

func TestRunResearchDroppedWhenDeletedMidFlight(t *testing.T) {
	st := store.New()
	job, _ := st.Create(models.KindResearch, "Acme Corp")
	llm := &stubLLM{}
	llm.onCompile = func() {
		if err := st.Delete(job.JobID); err != nil {
			t.Errorf("delete: %v", err)
		}
	}
	eng := newTestEngine(t, st, &stubSearcher{}, &stubFetcher{}, llm)

	eng.Run(context.Background(), job.JobID)

	if _, err := st.Get(job.JobID); err == nil {
		t.Fatalf("expected job to stay deleted")
	}
}

func TestRunSearchKind(t *testing.T) {
	st := store.New()
	job, _ := st.Create(models.KindSearch, "acme widgets")
	searcher := &stubSearcher{}
	eng := newTestEngine(t, st, searcher, &stubFetcher{}, &stubLLM{})

	eng.Run(context.Background(), job.JobID)

	got, _ := st.Get(job.JobID)
	if got.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s (error %q)", got.Status, got.Error)
	}
	if got.OperationResult == nil || got.OperationResult.Kind != models.KindSearch {
		t.Fatalf("expected a search operation result, got %+v", got.OperationResult)
	}
	if len(got.OperationResult.Search) != 2 {
		t.Fatalf("expected 2 deduplicated hits, got %d", len(got.OperationResult.Search))
	}
	if got.Report != nil {
		t.Fatalf("search jobs carry no report")
	}
}

func TestRunCrawlKindUsesCache(t *testing.T) {
	st := store.New()
	fetcher := &stubFetcher{}
	c := cache.New(inmemory.NewBackend(), time.Minute)
	eng := NewEngine(st, c, &stubSearcher{}, fetcher, &stubLLM{}, nil, nil, Options{})

	for i := 0; i < 2; i++ {
		job, _ := st.Create(models.KindCrawl, "https://example.com/page")
		eng.Run(context.Background(), job.JobID)
		got, _ := st.Get(job.JobID)
		if got.Status != models.StatusCompleted {
			t.Fatalf("run %d: expected completed, got %s (error %q)", i, got.Status, got.Error)
		}
		if got.OperationResult == nil || got.OperationResult.Page == nil {
			t.Fatalf("run %d: expected a fetched page", i)
		}
		if got.OperationResult.Page.Text != "extracted body" {
			t.Fatalf("run %d: unexpected text %q", i, got.OperationResult.Page.Text)
		}
	}
	if n := atomic.LoadInt32(&fetcher.calls); n != 1 {
		t.Fatalf("expected second crawl to be served from cache, got %d fetches", n)
	}
}

func TestRunFetchFailure(t *testing.T) {
	st := store.New()
	job, _ := st.Create(models.KindExtract, "https://example.com/broken")
	eng := newTestEngine(t, st, &stubSearcher{}, &stubFetcher{err: fmt.Errorf("status 503")}, &stubLLM{})

	eng.Run(context.Background(), job.JobID)

	got, _ := st.Get(job.JobID)
	if got.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.Error, "fetch gateway") {
		t.Fatalf("expected a fetch gateway cause, got %q", got.Error)
	}
}

func TestRunVanishedJobIsNoop(t *testing.T) {
	st := store.New()
	eng := newTestEngine(t, st, &stubSearcher{}, &stubFetcher{}, &stubLLM{})
	eng.Run(context.Background(), "no-such-id")
}
