package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"paperguild/internal/core"
	"paperguild/internal/pipeline"
)

type fakeFetcher struct{ err error }

func (f *fakeFetcher) Run(ctx context.Context, topic string, days, maxResults int) ([]core.Paper, error) {
	return []core.Paper{{ID: "arxiv:1"}}, f.err
}

type fakeListStage struct{}

func (fakeListStage) Run(ctx context.Context, papers []core.Paper) ([]core.Paper, error) {
	return papers, nil
}

type fakeTrendStage struct{ trends []core.Trend }

func (f fakeTrendStage) Run(ctx context.Context) ([]core.Trend, error) {
	return f.trends, nil
}

type fakePlanStage struct{ text string }

func (f fakePlanStage) Run(ctx context.Context) (string, error) { return f.text, nil }

type jobStore struct {
	mu           sync.Mutex
	statuses     map[string]core.JobStatus
	errors       map[string]string
	logs         map[string][]string
	results      map[string]core.Result
	storedTrends []core.Trend
	storedPlan   *core.Plan
	done         chan string
}

func newJobStore() *jobStore {
	return &jobStore{
		statuses: make(map[string]core.JobStatus),
		errors:   make(map[string]string),
		logs:     make(map[string][]string),
		results:  make(map[string]core.Result),
		done:     make(chan string, 8),
	}
}

func (s *jobStore) CreateJob(job core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[job.ID] = core.JobQueued
	return nil
}

func (s *jobStore) MarkJobRunning(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = core.JobRunning
	return nil
}

func (s *jobStore) MarkJobDone(id string) error {
	s.mu.Lock()
	s.statuses[id] = core.JobDone
	s.mu.Unlock()
	s.done <- id
	return nil
}

func (s *jobStore) MarkJobFailed(id, errText string) error {
	s.mu.Lock()
	s.statuses[id] = core.JobFailed
	s.errors[id] = errText
	s.mu.Unlock()
	s.done <- id
	return nil
}

func (s *jobStore) AppendJobLog(jobID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[jobID] = append(s.logs[jobID], msg)
	return nil
}

func (s *jobStore) SaveResult(result core.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.JobID] = result
	return nil
}

func (s *jobStore) SummarizedPapers() ([]core.Paper, error) {
	return []core.Paper{{ID: "arxiv:1", Summary: "s"}}, nil
}

func (s *jobStore) LatestIdeas() ([]core.Idea, error) {
	return []core.Idea{{PaperID: "arxiv:1", Text: "idea"}}, nil
}

func (s *jobStore) LatestTrends() ([]core.Trend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedTrends, nil
}

func (s *jobStore) LatestPlan() (*core.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedPlan, nil
}

func (s *jobStore) status(id string) core.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id]
}

func newTestRunner(store *jobStore, fetchErr error) *Runner {
	p := pipeline.New(&fakeFetcher{err: fetchErr}, fakeListStage{}, fakeListStage{},
		fakeTrendStage{trends: []core.Trend{{Label: "a / b / c"}}},
		fakePlanStage{text: "plan text"})
	return NewRunner(store, p, 4, time.Minute)
}

func waitDone(t *testing.T, store *jobStore) string {
	t.Helper()
	select {
	case id := <-store.done:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish in time")
		return ""
	}
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	store := newJobStore()
	runner := newTestRunner(store, nil)
	runner.Start()
	defer runner.Stop()

	id, err := runner.Submit("ai safety", 2, 25)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a job id")
	}

	waitDone(t, store)
	if got := store.status(id); got != core.JobDone {
		t.Errorf("expected done, got %s", got)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	result, ok := store.results[id]
	if !ok {
		t.Fatal("result snapshot should be stored")
	}
	if result.ReadingPlan != "plan text" || len(result.Trends) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	logs := store.logs[id]
	if len(logs) == 0 || logs[len(logs)-1] != pipeline.DoneMarker {
		t.Errorf("job log must end with the done marker, got %v", logs)
	}
}

func TestSubmitFailedRun(t *testing.T) {
	store := newJobStore()
	runner := newTestRunner(store, errors.New("catalogs unreachable"))
	runner.Start()
	defer runner.Stop()

	id, err := runner.Submit("ai safety", 2, 25)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitDone(t, store)
	if got := store.status(id); got != core.JobFailed {
		t.Errorf("expected failed, got %s", got)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.errors[id] == "" {
		t.Error("failure reason should be recorded")
	}
	logs := store.logs[id]
	if len(logs) == 0 || logs[len(logs)-1] != pipeline.DoneMarker {
		t.Errorf("failed job log must still end with the done marker, got %v", logs)
	}
}

func TestResultFallsBackToStoredSnapshot(t *testing.T) {
	// With a tiny corpus the trend stage no-ops and an empty candidate pool
	// no-ops the plan stage; the result then serves the stored snapshot
	// instead of blank fields.
	store := newJobStore()
	store.storedTrends = []core.Trend{{Label: "kept / from / before"}}
	store.storedPlan = &core.Plan{Text: "previous plan"}

	p := pipeline.New(&fakeFetcher{}, fakeListStage{}, fakeListStage{},
		fakeTrendStage{}, fakePlanStage{})
	runner := NewRunner(store, p, 4, time.Minute)
	runner.Start()
	defer runner.Stop()

	id, err := runner.Submit("topic", 1, 5)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitDone(t, store)

	store.mu.Lock()
	defer store.mu.Unlock()
	result := store.results[id]
	if len(result.Trends) != 1 || result.Trends[0].Label != "kept / from / before" {
		t.Errorf("expected stored trends in the result, got %+v", result.Trends)
	}
	if result.ReadingPlan != "previous plan" {
		t.Errorf("expected stored plan in the result, got %q", result.ReadingPlan)
	}
}

func TestJobsRunSequentially(t *testing.T) {
	store := newJobStore()
	runner := newTestRunner(store, nil)
	runner.Start()
	defer runner.Stop()

	first, err := runner.Submit("topic", 1, 5)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	second, err := runner.Submit("topic", 1, 5)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// The single worker finishes the first job before the second.
	if got := waitDone(t, store); got != first {
		t.Errorf("expected %s to finish first, got %s", first, got)
	}
	if got := waitDone(t, store); got != second {
		t.Errorf("expected %s to finish second, got %s", second, got)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	store := newJobStore()
	runner := newTestRunner(store, nil)
	runner.Start()
	runner.Stop()

	if _, err := runner.Submit("topic", 1, 5); err == nil {
		t.Error("expected error when submitting to a stopped runner")
	}
}
