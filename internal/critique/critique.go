// Package critique implements the third pipeline stage: run every summarized
// paper past a strict reviewer and persist the scored verdict.
package critique

import (
	"context"
	"fmt"
	"strconv"

	"paperguild/internal/core"
	"paperguild/internal/llm"
	"paperguild/internal/logger"
)

// Reviewer produces a structured review of a paper summary.
type Reviewer interface {
	Review(ctx context.Context, title, summary string) (llm.ReviewResult, error)
}

// Store is the subset of the storage layer the critic needs.
type Store interface {
	SummarizedPapers() ([]core.Paper, error)
	UpdatePaperReview(id string, novelty, method, relevance int, critique string) error
}

// Stage reviews summarized papers.
type Stage struct {
	reviewer      Reviewer
	store         Store
	minSummaryLen int
}

// NewStage wires the critique stage. Summaries shorter than minSummaryLen
// characters are skipped; there is not enough material to review.
func NewStage(store Store, reviewer Reviewer, minSummaryLen int) *Stage {
	return &Stage{reviewer: reviewer, store: store, minSummaryLen: minSummaryLen}
}

// Run reviews the papers summarized this run plus any summarized paper in
// the store that does not yet carry scores. A malformed or failed review
// drops that paper from this round and moves on. The returned slice holds
// the papers reviewed this round, each carrying its new scores.
func (s *Stage) Run(ctx context.Context, summarized []core.Paper) ([]core.Paper, error) {
	stored, err := s.store.SummarizedPapers()
	if err != nil {
		return nil, fmt.Errorf("loading summarized papers: %w", err)
	}

	queue := make([]core.Paper, 0, len(summarized)+len(stored))
	queued := make(map[string]bool, len(summarized)+len(stored))
	for _, paper := range summarized {
		if !paper.Summarized() || queued[paper.ID] {
			continue
		}
		queued[paper.ID] = true
		queue = append(queue, paper)
	}
	for _, paper := range stored {
		if queued[paper.ID] {
			continue
		}
		queued[paper.ID] = true
		queue = append(queue, paper)
	}

	var reviewed []core.Paper
	for _, paper := range queue {
		if ctx.Err() != nil {
			return reviewed, ctx.Err()
		}
		if paper.Critique != "" {
			continue
		}
		if len(paper.Summary) < s.minSummaryLen {
			logger.Debug("summary too short to review", "paper", paper.ID, "len", len(paper.Summary))
			continue
		}

		result, err := s.reviewer.Review(ctx, paper.Title, paper.Summary)
		if err != nil {
			logger.Warn("review failed, dropping paper from this round",
				"paper", paper.ID, "error", err.Error())
			continue
		}

		if err := s.store.UpdatePaperReview(paper.ID,
			result.Novelty, result.Methodology, result.Relevance, result.Critique); err != nil {
			return reviewed, fmt.Errorf("storing review for %s: %w", paper.ID, err)
		}
		paper.ScoreNovelty = strconv.Itoa(result.Novelty)
		paper.ScoreMethod = strconv.Itoa(result.Methodology)
		paper.ScoreRelevance = strconv.Itoa(result.Relevance)
		paper.Critique = result.Critique
		reviewed = append(reviewed, paper)
	}
	logger.Info("critique finished", "reviewed", len(reviewed), "candidates", len(queue))
	return reviewed, nil
}
