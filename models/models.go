package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across the store, limiter and HTTP layer.
var (
	ErrJobNotFound   = errors.New("job not found")
	ErrNotReady      = errors.New("job is not completed yet")
	ErrQuotaExceeded = errors.New("question quota exceeded")
	ErrValidation    = errors.New("validation failed")
)

// UpstreamError wraps a failure (or timeout) of an external gateway call.
type UpstreamError struct {
	Gateway string // "search", "generation", "fetch"
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s gateway: %v", e.Gateway, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// JobKind selects the pipeline a job runs through.
type JobKind string

const (
	KindResearch JobKind = "research"
	KindSearch   JobKind = "search"
	KindCrawl    JobKind = "crawl"
	KindExtract  JobKind = "extract"
)

func (k JobKind) Valid() bool {
	switch k {
	case KindResearch, KindSearch, KindCrawl, KindExtract:
		return true
	}
	return false
}

// JobStatus moves forward only: queued -> searching -> analyzing -> compiling
// -> completed, with failed reachable from any non-terminal state.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusSearching JobStatus = "searching"
	StatusAnalyzing JobStatus = "analyzing"
	StatusCompiling JobStatus = "compiling"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

var statusRank = map[JobStatus]int{
	StatusQueued:    0,
	StatusSearching: 1,
	StatusAnalyzing: 2,
	StatusCompiling: 3,
	StatusCompleted: 4,
	StatusFailed:    4,
}

// Terminal reports whether no further transition may occur.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next respects the state machine.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// QuestionQuota is the number of follow-up questions granted when a research
// job completes.
const QuestionQuota = 10

// QAExchange is one answered follow-up question.
type QAExchange struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// SWOTAnalysis holds the four analysis quadrants.
type SWOTAnalysis struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

type Trend struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Relevance   string `json:"relevance"` // high | medium | low
}

type Source struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Category  string    `json:"category,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Report is the final artifact of a research job.
type Report struct {
	CompanyOverview      string       `json:"company_overview"`
	SWOT                 SWOTAnalysis `json:"swot"`
	Trends               []Trend      `json:"trends"`
	CompetitiveLandscape string       `json:"competitive_landscape"`
	KeyFindings          []string     `json:"key_findings"`
	Sources              []Source     `json:"sources"`
	SuggestedQuestions   []string     `json:"suggested_questions,omitempty"`
}

// SearchHit is one result row from the search gateway, carried into
// operation results and aggregated search context.
type SearchHit struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// FetchedPage is the extracted content of a crawled URL.
type FetchedPage struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Excerpt string `json:"excerpt,omitempty"`
}

// OperationResult is the tagged payload for non-research kinds. Exactly one
// of the pointer fields is set, matching Kind.
type OperationResult struct {
	Kind   JobKind      `json:"kind"`
	Search []SearchHit  `json:"search,omitempty"`
	Page   *FetchedPage `json:"page,omitempty"`
}

// Job is the central record tracked by the store.
type Job struct {
	JobID           string           `json:"job_id"`
	Kind            JobKind          `json:"job_kind"`
	Status          JobStatus        `json:"status"`
	Query           string           `json:"query"`
	CreatedAt       time.Time        `json:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	DurationSeconds float64          `json:"duration_seconds,omitempty"`
	Report          *Report          `json:"report,omitempty"`
	OperationResult *OperationResult `json:"operation_result,omitempty"`
	Error           string           `json:"error,omitempty"`
	QAHistory       []QAExchange     `json:"qa_history,omitempty"`
	QARemaining     int              `json:"qa_remaining"`
}

// JobSummary is the list-view projection of a job, without heavy payloads.
type JobSummary struct {
	JobID           string     `json:"job_id"`
	Kind            JobKind    `json:"job_kind"`
	Status          JobStatus  `json:"status"`
	Query           string     `json:"query"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}

// Summary projects a job into its list representation.
func (j Job) Summary() JobSummary {
	return JobSummary{
		JobID:           j.JobID,
		Kind:            j.Kind,
		Status:          j.Status,
		Query:           j.Query,
		CreatedAt:       j.CreatedAt,
		CompletedAt:     j.CompletedAt,
		DurationSeconds: j.DurationSeconds,
	}
}
