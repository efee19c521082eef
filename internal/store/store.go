package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/researchly/marketscout/models"
)

// Store is the concurrency-safe job registry. The outer lock guards the map;
// each record carries its own lock so mutation of one job never blocks
// readers of another, and no caller observes a torn record.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*record
}

type record struct {
	mu  sync.Mutex
	job models.Job
}

func New() *Store {
	return &Store{jobs: make(map[string]*record)}
}

// Create allocates a queued job and returns it. The pipeline is not started
// here; dispatch belongs to the caller.
func (s *Store) Create(kind models.JobKind, query string) (models.Job, error) {
	if strings.TrimSpace(query) == "" {
		return models.Job{}, models.ErrValidation
	}
	if !kind.Valid() {
		return models.Job{}, models.ErrValidation
	}

	job := models.Job{
		JobID:     uuid.NewString(),
		Kind:      kind,
		Status:    models.StatusQueued,
		Query:     query,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.JobID] = &record{job: job}
	s.mu.Unlock()
	return job, nil
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (models.Job, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return models.Job{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.job, nil
}

// List returns summaries of all jobs, newest first.
func (s *Store) List() []models.JobSummary {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	summaries := make([]models.JobSummary, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		summaries = append(summaries, rec.job.Summary())
		rec.mu.Unlock()
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].JobID < summaries[j].JobID
	})
	return summaries
}

// Delete removes the job. A running pipeline is detached rather than
// cancelled: its terminal write will find no record and be dropped.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return models.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

// SetStatus advances the job to an intermediate pipeline state. Transitions
// that would move backwards or leave a terminal state are rejected.
func (s *Store) SetStatus(id string, status models.JobStatus) error {
	rec, err := s.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.job.Status.CanTransition(status) {
		return models.ErrNotReady
	}
	rec.job.Status = status
	return nil
}

// CompleteResearch marks a research job completed with its report and opens
// the follow-up question quota.
func (s *Store) CompleteResearch(id string, report *models.Report) error {
	return s.complete(id, func(job *models.Job) {
		job.Report = report
	})
}

// CompleteOperation marks a non-research job completed with its tagged
// result.
func (s *Store) CompleteOperation(id string, result *models.OperationResult) error {
	return s.complete(id, func(job *models.Job) {
		job.OperationResult = result
	})
}

func (s *Store) complete(id string, assign func(*models.Job)) error {
	rec, err := s.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.job.Status.CanTransition(models.StatusCompleted) {
		return models.ErrNotReady
	}
	assign(&rec.job)
	rec.job.Status = models.StatusCompleted
	rec.job.QARemaining = models.QuestionQuota
	finish(&rec.job)
	return nil
}

// Fail moves the job to the failed terminal state with a human-readable
// cause.
func (s *Store) Fail(id string, cause string) error {
	rec, err := s.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.job.Status.CanTransition(models.StatusFailed) {
		return models.ErrNotReady
	}
	rec.job.Status = models.StatusFailed
	rec.job.Error = cause
	finish(&rec.job)
	return nil
}

// ReportSnapshot returns the completed job's report for prompting. NotReady
// is returned for non-terminal or failed jobs, QuotaExceeded when no
// questions remain.
func (s *Store) ReportSnapshot(id string) (*models.Report, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.job.Status != models.StatusCompleted || rec.job.Report == nil {
		return nil, models.ErrNotReady
	}
	if rec.job.QARemaining <= 0 {
		return nil, models.ErrQuotaExceeded
	}
	return rec.job.Report, nil
}

// RecordExchange atomically claims one question slot and appends the
// exchange. The check-then-decrement runs under the record lock, so the
// counter never goes negative and only ever decreases, even when asks race.
func (s *Store) RecordExchange(id, question, answer string) (remaining int, err error) {
	rec, err := s.lookup(id)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.job.Status != models.StatusCompleted {
		return 0, models.ErrNotReady
	}
	if rec.job.QARemaining <= 0 {
		return 0, models.ErrQuotaExceeded
	}
	rec.job.QARemaining--
	rec.job.QAHistory = append(rec.job.QAHistory, models.QAExchange{
		Question: question,
		Answer:   answer,
		AskedAt:  time.Now().UTC(),
	})
	return rec.job.QARemaining, nil
}

func (s *Store) lookup(id string) (*record, error) {
	s.mu.RLock()
	rec, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return rec, nil
}

func finish(job *models.Job) {
	now := time.Now().UTC()
	job.CompletedAt = &now
	job.DurationSeconds = float64(int(now.Sub(job.CreatedAt).Seconds()*10)) / 10
}
