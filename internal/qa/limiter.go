package qa

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/researchly/marketscout/internal/research"
	"github.com/researchly/marketscout/internal/store"
	"github.com/researchly/marketscout/models"
	"github.com/researchly/marketscout/provider"
)

// Answer is the outcome of one follow-up question.
type Answer struct {
	Question           string   `json:"question"`
	Answer             string   `json:"answer"`
	Remaining          int      `json:"remaining_questions"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
}

// Limiter answers follow-up questions against a completed report while
// enforcing the per-job question quota.
type Limiter struct {
	store   *store.Store
	llm     provider.Provider
	timeout time.Duration
	logger  *log.Logger
}

func NewLimiter(st *store.Store, llm provider.Provider, timeout time.Duration, logger *log.Logger) *Limiter {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[QA] ", log.LstdFlags)
	}
	return &Limiter{store: st, llm: llm, timeout: timeout, logger: logger}
}

// Ask answers one question about the job's report. It fails with NotFound,
// NotReady or QuotaExceeded without touching job state; the quota slot is
// claimed only after the generation call succeeded, atomically with the
// history append, so concurrent asks can never drive the counter negative.
func (l *Limiter) Ask(ctx context.Context, jobID, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, models.ErrValidation
	}

	job, err := l.store.Get(jobID)
	if err != nil {
		return Answer{}, err
	}
	// Fast-path rejection before spending a generation call.
	report, err := l.store.ReportSnapshot(jobID)
	if err != nil {
		return Answer{}, err
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return Answer{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	answer, err := l.llm.Complete(cctx, []provider.Message{
		{Role: "system", Content: research.SystemAssistant()},
		{Role: "user", Content: research.AnswerPrompt(job.Query, string(reportJSON), question)},
	})
	if err != nil {
		return Answer{}, &models.UpstreamError{Gateway: "generation", Err: err}
	}

	remaining, err := l.store.RecordExchange(jobID, question, answer)
	if err != nil {
		// Lost a race for the last slot, or the job was deleted mid-call.
		return Answer{}, err
	}

	l.logger.Printf("[%s] answered follow-up, %d questions remaining", jobID, remaining)
	return Answer{
		Question:           question,
		Answer:             answer,
		Remaining:          remaining,
		SuggestedQuestions: report.SuggestedQuestions,
	}, nil
}
