// Package plan implements the fifth pipeline stage: rank recently summarized
// papers by review score and draft a reading plan over the best of them.
package plan

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"paperguild/internal/core"
	"paperguild/internal/llm"
	"paperguild/internal/logger"
)

// Score weights. Relevance dominates: the plan is for a practitioner deciding
// what to read this week, not an award committee.
const (
	relevanceWeight = 0.6
	noveltyWeight   = 0.4
)

// Planner drafts the reading plan prose.
type Planner interface {
	ReadingPlan(ctx context.Context, candidates []llm.PlanCandidate) (string, error)
}

// Store is the subset of the storage layer the plan stage needs.
type Store interface {
	PapersSince(cutoff time.Time) ([]core.Paper, error)
	ReplacePlan(plan core.Plan) error
}

// Stage produces the reading plan.
type Stage struct {
	store   Store
	planner Planner
	days    int
	topN    int
	now     func() time.Time
}

// NewStage wires the plan stage. Candidates come from the last days days;
// the plan covers the topN highest scored.
func NewStage(store Store, planner Planner, days, topN int) *Stage {
	return &Stage{store: store, planner: planner, days: days, topN: topN, now: time.Now}
}

// Run ranks candidates and replaces the stored plan. An empty candidate pool
// is a no-op: the previous plan, if any, stays.
func (s *Stage) Run(ctx context.Context) (string, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.days)
	papers, err := s.store.PapersSince(cutoff)
	if err != nil {
		return "", fmt.Errorf("loading plan candidates: %w", err)
	}

	ranked := Rank(papers)
	if len(ranked) == 0 {
		logger.Info("no scored candidates in window, keeping previous plan", "window_days", s.days)
		return "", nil
	}
	if len(ranked) > s.topN {
		ranked = ranked[:s.topN]
	}

	candidates := make([]llm.PlanCandidate, len(ranked))
	for i, cand := range ranked {
		candidates[i] = llm.PlanCandidate{
			Title:   cand.Paper.Title,
			Link:    cand.Paper.PDFURL,
			Summary: cand.Paper.Summary,
			Score:   cand.Score,
		}
	}

	text, err := s.planner.ReadingPlan(ctx, candidates)
	if err != nil {
		return "", fmt.Errorf("drafting reading plan: %w", err)
	}

	if err := s.store.ReplacePlan(core.Plan{Text: text, CreatedAt: s.now().UTC()}); err != nil {
		return "", fmt.Errorf("storing reading plan: %w", err)
	}
	logger.Info("reading plan replaced", "candidates", len(candidates))
	return text, nil
}

// Candidate is a paper with its computed plan score.
type Candidate struct {
	Paper core.Paper
	Score float64
}

// Rank scores and orders the papers, best first. Papers whose review scores
// do not parse as numbers are excluded; an unreviewed paper has no standing
// in the ranking. The sort is stable, so equal scores keep store order.
func Rank(papers []core.Paper) []Candidate {
	candidates := make([]Candidate, 0, len(papers))
	for _, paper := range papers {
		score, ok := scoreOf(paper)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Paper: paper, Score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

func scoreOf(paper core.Paper) (float64, bool) {
	relevance, err := strconv.ParseFloat(paper.ScoreRelevance, 64)
	if err != nil {
		return 0, false
	}
	novelty, err := strconv.ParseFloat(paper.ScoreNovelty, 64)
	if err != nil {
		return 0, false
	}
	return relevanceWeight*relevance + noveltyWeight*novelty, true
}
