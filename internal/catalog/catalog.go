// Package catalog implements clients for the external paper catalogs the
// fetch stage queries: the arXiv Atom API and the Semantic Scholar graph API.
package catalog

import (
	"context"

	"paperguild/internal/core"
)

// Source searches a paper catalog for recent work on a topic. Implementations
// return candidate papers with stable, scheme-prefixed identifiers so results
// from different catalogs never collide.
type Source interface {
	// Name identifies the catalog in logs and in the papers table.
	Name() string
	// Search returns up to maxResults papers on the topic submitted within
	// the last days days.
	Search(ctx context.Context, topic string, days, maxResults int) ([]core.Paper, error)
}
