package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/researchly/marketscout/models"
)

func TestCreateRejectsInvalidInput(t *testing.T) {
	s := New()
	if _, err := s.Create(models.KindResearch, "   "); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for blank query, got %v", err)
	}
	if _, err := s.Create(models.JobKind("audit"), "Acme Corp"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}
}

func TestCreateStartsQueued(t *testing.T) {
	s := New()
	job, err := s.Create(models.KindResearch, "Acme Corp")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != models.StatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if job.JobID == "" {
		t.Fatalf("expected a job id")
	}
	got, err := s.Get(job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Query != "Acme Corp" {
		t.Fatalf("expected query to round-trip, got %q", got.Query)
	}
}

func TestStatusAdvancesForwardOnly(t *testing.T) {
	s := New()
	job, _ := s.Create(models.KindResearch, "Acme Corp")

	for _, next := range []models.JobStatus{models.StatusSearching, models.StatusAnalyzing, models.StatusCompiling} {
		if err := s.SetStatus(job.JobID, next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if err := s.SetStatus(job.JobID, models.StatusSearching); !errors.Is(err, models.ErrNotReady) {
		t.Fatalf("expected backward transition to be rejected, got %v", err)
	}
	if err := s.CompleteResearch(job.JobID, &models.Report{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.SetStatus(job.JobID, models.StatusFailed); !errors.Is(err, models.ErrNotReady) {
		t.Fatalf("expected terminal state to be frozen, got %v", err)
	}
}

func TestFailFromAnyNonTerminalState(t *testing.T) {
	s := New()
	job, _ := s.Create(models.KindResearch, "Acme Corp")
	if err := s.SetStatus(job.JobID, models.StatusSearching); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := s.Fail(job.JobID, "search gateway: timeout"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := s.Get(job.JobID)
	if got.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Error == "" {
		t.Fatalf("expected failure cause to be recorded")
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completion timestamp on failure")
	}
}

func TestCompleteOpensQuestionQuota(t *testing.T) {
	s := New()
	job, _ := s.Create(models.KindResearch, "Acme Corp")
	if err := s.CompleteResearch(job.JobID, &models.Report{CompanyOverview: "ov"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := s.Get(job.JobID)
	if got.QARemaining != models.QuestionQuota {
		t.Fatalf("expected quota %d, got %d", models.QuestionQuota, got.QARemaining)
	}
	if got.Report == nil || got.Report.CompanyOverview != "ov" {
		t.Fatalf("expected report to be attached")
	}
}

func TestDeleteDetachesRunningJob(t *testing.T) {
	s := New()
	job, _ := s.Create(models.KindResearch, "Acme Corp")
	if err := s.SetStatus(job.JobID, models.StatusSearching); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := s.Delete(job.JobID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(job.JobID); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	// The detached pipeline's terminal write is dropped, not an error the
	// worker can act on beyond logging.
	if err := s.Fail(job.JobID, "late"); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected not found for late terminal write, got %v", err)
	}
	if err := s.Delete(job.JobID); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := New()
	var ids []string
	for i := 0; i < 5; i++ {
		job, err := s.Create(models.KindResearch, fmt.Sprintf("company %d", i))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, job.JobID)
	}
	summaries := s.List()
	if len(summaries) != 5 {
		t.Fatalf("expected 5 summaries, got %d", len(summaries))
	}
	for i := 1; i < len(summaries); i++ {
		prev, cur := summaries[i-1], summaries[i]
		if cur.CreatedAt.After(prev.CreatedAt) {
			t.Fatalf("summaries out of order at %d", i)
		}
		if cur.CreatedAt.Equal(prev.CreatedAt) && prev.JobID > cur.JobID {
			t.Fatalf("tie not broken by job id at %d", i)
		}
	}
}

func TestRecordExchangeQuotaNeverNegative(t *testing.T) {
	s := New()
	job, _ := s.Create(models.KindResearch, "Acme Corp")
	if err := s.CompleteResearch(job.JobID, &models.Report{}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	const askers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	rejected := 0
	seen := make(map[int]bool)
	for i := 0; i < askers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			remaining, err := s.RecordExchange(job.JobID, fmt.Sprintf("q%d", n), "a")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, models.ErrQuotaExceeded) {
					t.Errorf("unexpected error: %v", err)
				}
				rejected++
				return
			}
			if remaining < 0 {
				t.Errorf("remaining went negative: %d", remaining)
			}
			if seen[remaining] {
				t.Errorf("remaining value %d handed out twice", remaining)
			}
			seen[remaining] = true
			granted++
		}(i)
	}
	wg.Wait()

	if granted != models.QuestionQuota {
		t.Fatalf("expected exactly %d grants, got %d", models.QuestionQuota, granted)
	}
	if rejected != askers-models.QuestionQuota {
		t.Fatalf("expected %d rejections, got %d", askers-models.QuestionQuota, rejected)
	}
	got, _ := s.Get(job.JobID)
	if got.QARemaining != 0 {
		t.Fatalf("expected quota drained to 0, got %d", got.QARemaining)
	}
	if len(got.QAHistory) != models.QuestionQuota {
		t.Fatalf("expected %d history entries, got %d", models.QuestionQuota, len(got.QAHistory))
	}
}

func TestReportSnapshotGuards(t *testing.T) {
	s := New()
	job, _ := s.Create(models.KindResearch, "Acme Corp")
	if _, err := s.ReportSnapshot(job.JobID); !errors.Is(err, models.ErrNotReady) {
		t.Fatalf("expected not ready for queued job, got %v", err)
	}
	if err := s.Fail(job.JobID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := s.ReportSnapshot(job.JobID); !errors.Is(err, models.ErrNotReady) {
		t.Fatalf("expected not ready for failed job, got %v", err)
	}
	if _, err := s.ReportSnapshot("missing"); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
