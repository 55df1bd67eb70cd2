// Package fetch implements the first pipeline stage: query the paper
// catalogs, merge the results without duplicates, and persist anything new.
package fetch

import (
	"context"
	"fmt"
	"strings"

	"paperguild/internal/catalog"
	"paperguild/internal/core"
	"paperguild/internal/logger"
)

// Store is the subset of the storage layer the fetch stage needs.
type Store interface {
	PaperIDs() ([]string, error)
	InsertPapers(papers []core.Paper) error
}

// Stage queries every configured catalog and stores new papers.
type Stage struct {
	sources []catalog.Source
	store   Store
}

// NewStage wires the fetch stage. Source order matters: when two catalogs
// return papers with the same id, the earlier source wins.
func NewStage(store Store, sources ...catalog.Source) *Stage {
	return &Stage{sources: sources, store: store}
}

// Run searches all catalogs and inserts papers not already stored. A catalog
// failure is logged and skipped; even with every catalog down the run
// continues, so the later stages can still work the historical corpus. Only
// a store failure aborts.
func (s *Stage) Run(ctx context.Context, topic string, days, maxResults int) ([]core.Paper, error) {
	existing, err := s.store.PaperIDs()
	if err != nil {
		return nil, fmt.Errorf("loading known paper ids: %w", err)
	}

	// Known ids split by scheme, so each catalog's results are filtered in
	// that catalog's own identifier space.
	arxivIDs, doiIDs := PartitionByScheme(existing)
	arxivSeen := make(map[string]bool, len(arxivIDs))
	for _, id := range arxivIDs {
		arxivSeen[id] = true
	}
	doiSeen := make(map[string]bool, len(doiIDs))
	for _, id := range doiIDs {
		doiSeen[id] = true
	}
	seen := func(id string) map[string]bool {
		if strings.HasPrefix(id, catalog.ArxivIDPrefix) {
			return arxivSeen
		}
		return doiSeen
	}

	var merged []core.Paper
	failures := 0
	for _, source := range s.sources {
		papers, err := source.Search(ctx, topic, days, maxResults)
		if err != nil {
			logger.Warn("catalog search failed, continuing without it",
				"catalog", source.Name(), "error", err.Error())
			failures++
			continue
		}
		added := 0
		for _, paper := range papers {
			set := seen(paper.ID)
			if paper.ID == "" || set[paper.ID] {
				continue
			}
			set[paper.ID] = true
			merged = append(merged, paper)
			added++
		}
		logger.Info("catalog searched",
			"catalog", source.Name(), "returned", len(papers), "new", added)
	}

	if failures == len(s.sources) && len(s.sources) > 0 {
		logger.Warn("every catalog failed, continuing with no new papers", "catalogs", failures)
	}

	if len(merged) > 0 {
		if err := s.store.InsertPapers(merged); err != nil {
			return nil, fmt.Errorf("storing fetched papers: %w", err)
		}
	}
	return merged, nil
}

// PartitionByScheme splits paper ids into arXiv ids and DOI-keyed ids. The
// two id schemes never overlap, so cross-catalog duplicates cannot collide.
func PartitionByScheme(ids []string) (arxivIDs, doiIDs []string) {
	for _, id := range ids {
		if strings.HasPrefix(id, catalog.ArxivIDPrefix) {
			arxivIDs = append(arxivIDs, id)
		} else {
			doiIDs = append(doiIDs, id)
		}
	}
	return arxivIDs, doiIDs
}
