package catalog

import (
	"context"
	"strings"

	"paperguild/internal/core"
)

// AbstractRouter resolves a paper's abstract through whichever catalog owns
// its id scheme: arXiv ids go back to arXiv, DOI-keyed papers are looked up
// in Semantic Scholar by title.
type AbstractRouter struct {
	arxiv *ArxivClient
	s2    *S2Client
}

// NewAbstractRouter wires the two catalog clients.
func NewAbstractRouter(arxiv *ArxivClient, s2 *S2Client) *AbstractRouter {
	return &AbstractRouter{arxiv: arxiv, s2: s2}
}

// Abstract returns the paper's abstract from its home catalog.
func (r *AbstractRouter) Abstract(ctx context.Context, paper core.Paper) (string, error) {
	if strings.HasPrefix(paper.ID, ArxivIDPrefix) {
		return r.arxiv.Abstract(ctx, paper.ID)
	}
	return r.s2.AbstractByTitle(ctx, paper.Title)
}
