package critique

import (
	"context"
	"errors"
	"strings"
	"testing"

	"paperguild/internal/core"
	"paperguild/internal/llm"
)

type fakeReviewer struct {
	result llm.ReviewResult
	err    error
	calls  int
}

func (f *fakeReviewer) Review(ctx context.Context, title, summary string) (llm.ReviewResult, error) {
	f.calls++
	return f.result, f.err
}

type memStore struct {
	papers  []core.Paper
	reviews map[string]llm.ReviewResult
}

func newMemStore(papers ...core.Paper) *memStore {
	return &memStore{papers: papers, reviews: make(map[string]llm.ReviewResult)}
}

func (m *memStore) SummarizedPapers() ([]core.Paper, error) { return m.papers, nil }

func (m *memStore) UpdatePaperReview(id string, novelty, method, relevance int, critique string) error {
	m.reviews[id] = llm.ReviewResult{Novelty: novelty, Methodology: method, Relevance: relevance, Critique: critique}
	return nil
}

func longSummary() string {
	return strings.Repeat("A thorough summary of the paper. ", 5)
}

func TestRunReviewsPapers(t *testing.T) {
	store := newMemStore(core.Paper{ID: "arxiv:1", Title: "T", Summary: longSummary()})
	reviewer := &fakeReviewer{result: llm.ReviewResult{Novelty: 7, Methodology: 6, Relevance: 8, Critique: "fine"}}

	stage := NewStage(store, reviewer, 50)
	reviewed, err := stage.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(reviewed) != 1 {
		t.Fatalf("expected 1 reviewed, got %d", len(reviewed))
	}
	if got := reviewed[0]; got.ScoreNovelty != "7" || got.Critique != "fine" {
		t.Errorf("returned paper should carry its scores, got %+v", got)
	}
	if got := store.reviews["arxiv:1"]; got.Novelty != 7 || got.Critique != "fine" {
		t.Errorf("unexpected stored review: %+v", got)
	}
}

func TestRunReviewsSummarizedPayload(t *testing.T) {
	// Papers handed over from the summarization stage are reviewed even when
	// the store sweep does not surface them.
	store := newMemStore()
	reviewer := &fakeReviewer{result: llm.ReviewResult{Novelty: 5, Methodology: 5, Relevance: 9, Critique: "solid"}}

	stage := NewStage(store, reviewer, 50)
	reviewed, err := stage.Run(context.Background(), []core.Paper{
		{ID: "arxiv:9", Title: "T", Summary: longSummary()},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(reviewed) != 1 || reviewed[0].ID != "arxiv:9" {
		t.Fatalf("expected the payload paper reviewed, got %v", reviewed)
	}
	if store.reviews["arxiv:9"].Relevance != 9 {
		t.Errorf("review should be persisted, got %+v", store.reviews)
	}
}

func TestRunSkipsShortSummaries(t *testing.T) {
	store := newMemStore(core.Paper{ID: "arxiv:1", Title: "T", Summary: "too short"})
	reviewer := &fakeReviewer{}

	stage := NewStage(store, reviewer, 50)
	reviewed, err := stage.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(reviewed) != 0 || reviewer.calls != 0 {
		t.Errorf("short summary should be skipped without an oracle call, reviewed=%d calls=%d", len(reviewed), reviewer.calls)
	}
}

func TestRunSkipsAlreadyReviewed(t *testing.T) {
	store := newMemStore(core.Paper{ID: "arxiv:1", Title: "T", Summary: longSummary(), Critique: "done before"})
	reviewer := &fakeReviewer{}

	stage := NewStage(store, reviewer, 50)
	if _, err := stage.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reviewer.calls != 0 {
		t.Errorf("already reviewed paper should not be re-reviewed, got %d calls", reviewer.calls)
	}
}

func TestRunDropsFailedReviews(t *testing.T) {
	store := newMemStore(
		core.Paper{ID: "arxiv:1", Title: "T", Summary: longSummary()},
	)
	reviewer := &fakeReviewer{err: errors.New("malformed response")}

	stage := NewStage(store, reviewer, 50)
	reviewed, err := stage.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run should absorb review failures: %v", err)
	}
	if len(reviewed) != 0 {
		t.Errorf("expected 0 reviewed, got %d", len(reviewed))
	}
	if len(store.reviews) != 0 {
		t.Errorf("failed review must not be stored, got %v", store.reviews)
	}
}
