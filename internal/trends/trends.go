// Package trends implements the fourth pipeline stage: cluster the summarized
// corpus, label each cluster, measure week-over-week growth and store the
// top trends as a replaceable snapshot.
package trends

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"paperguild/internal/clustering"
	"paperguild/internal/core"
	"paperguild/internal/logger"
)

// MinCorpusSize is the smallest corpus worth clustering. Below it the stage
// is a logged no-op and any previous trend snapshot is left in place.
const MinCorpusSize = 8

const labelTerms = 3

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Store is the subset of the storage layer the trend stage needs.
type Store interface {
	SummarizedPapers() ([]core.Paper, error)
	UpdatePaperEmbedding(id string, embedding []float64) error
	ReplaceTrends(trends []core.Trend) error
}

// Stage computes the trend snapshot.
type Stage struct {
	store    Store
	embedder Embedder
	topK     int
	now      func() time.Time
}

// NewStage wires the trend stage. topK bounds how many trends the snapshot
// keeps.
func NewStage(store Store, embedder Embedder, topK int) *Stage {
	return &Stage{store: store, embedder: embedder, topK: topK, now: time.Now}
}

// Run recomputes the trend snapshot over the whole summarized corpus.
func (s *Stage) Run(ctx context.Context) ([]core.Trend, error) {
	papers, err := s.store.SummarizedPapers()
	if err != nil {
		return nil, fmt.Errorf("loading summarized papers: %w", err)
	}
	if len(papers) < MinCorpusSize {
		logger.Info("corpus too small for trend analysis, keeping previous snapshot",
			"papers", len(papers), "minimum", MinCorpusSize)
		return nil, nil
	}

	if err := s.ensureEmbeddings(ctx, papers); err != nil {
		return nil, err
	}

	embeddings := make([][]float64, len(papers))
	for i, paper := range papers {
		embeddings[i] = paper.Embedding
	}

	k := clustering.ClusterCount(len(papers))
	km := clustering.NewKMeans(clustering.DefaultConfig())
	assignments, _, err := km.Run(embeddings, k)
	if err != nil {
		return nil, fmt.Errorf("clustering corpus: %w", err)
	}

	trends := s.buildTrends(papers, assignments, k)
	sort.SliceStable(trends, func(i, j int) bool {
		if trends[i].Growth != trends[j].Growth {
			return trends[i].Growth > trends[j].Growth
		}
		return trends[i].Count > trends[j].Count
	})
	if len(trends) > s.topK {
		trends = trends[:s.topK]
	}

	if err := s.store.ReplaceTrends(trends); err != nil {
		return nil, fmt.Errorf("storing trend snapshot: %w", err)
	}
	logger.Info("trend snapshot replaced", "clusters", k, "kept", len(trends))
	return trends, nil
}

// ensureEmbeddings backfills missing embeddings from summaries. The slice is
// updated in place so the clustering below sees every vector.
func (s *Stage) ensureEmbeddings(ctx context.Context, papers []core.Paper) error {
	for i := range papers {
		if len(papers[i].Embedding) > 0 {
			continue
		}
		embedding, err := s.embedder.Embed(ctx, papers[i].Summary)
		if err != nil {
			return fmt.Errorf("embedding paper %s: %w", papers[i].ID, err)
		}
		if err := s.store.UpdatePaperEmbedding(papers[i].ID, embedding); err != nil {
			return fmt.Errorf("storing embedding for %s: %w", papers[i].ID, err)
		}
		papers[i].Embedding = embedding
	}
	return nil
}

func (s *Stage) buildTrends(papers []core.Paper, assignments []int, k int) []core.Trend {
	corpus := make([]string, len(papers))
	for i, paper := range papers {
		corpus[i] = paper.Summary
	}
	vectorizer := FitVectorizer(corpus)

	now := s.now().UTC()
	currentStart := now.AddDate(0, 0, -7)
	previousStart := now.AddDate(0, 0, -14)

	computedAt := now
	trends := make([]core.Trend, 0, k)
	for cluster := 0; cluster < k; cluster++ {
		var members []core.Paper
		for i, paper := range papers {
			if assignments[i] == cluster {
				members = append(members, paper)
			}
		}
		if len(members) == 0 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].CreatedAt.After(members[j].CreatedAt)
		})

		memberIDs := make([]string, len(members))
		memberSummaries := make([]string, len(members))
		current, previous := 0, 0
		for i, paper := range members {
			memberIDs[i] = paper.ID
			memberSummaries[i] = paper.Summary
			switch {
			case !paper.CreatedAt.Before(currentStart):
				current++
			case !paper.CreatedAt.Before(previousStart):
				previous++
			}
		}

		trends = append(trends, core.Trend{
			Label:      labelFor(vectorizer, memberSummaries),
			PaperIDs:   memberIDs,
			Count:      current,
			Growth:     GrowthRate(current, previous),
			ComputedAt: computedAt,
		})
	}
	return trends
}

func labelFor(vectorizer *Vectorizer, summaries []string) string {
	terms := vectorizer.TopTerms(strings.Join(summaries, "\n"), labelTerms)
	if len(terms) == 0 {
		return "(unlabeled)"
	}
	return strings.Join(terms, " / ")
}

// GrowthRate compares the current 7-day window against the previous one.
// The denominator is floored at 1 so brand-new clusters get a finite rate.
func GrowthRate(current, previous int) float64 {
	denominator := previous
	if denominator < 1 {
		denominator = 1
	}
	rate := float64(current-previous) / float64(denominator)
	return math.Round(rate*100) / 100
}
