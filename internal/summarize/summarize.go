// Package summarize implements the second pipeline stage: turn each fetched
// paper into a stored summary, falling back to its abstract or its title when
// the full document is unreachable, and record a future-work idea per paper.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"paperguild/internal/core"
	"paperguild/internal/logger"
)

// Oracle is the subset of LLM calls the summarizer makes.
type Oracle interface {
	Summarize(ctx context.Context, text string) (string, error)
	TitleSummary(ctx context.Context, title string) (string, error)
	FutureIdeas(ctx context.Context, title, summary string) (string, error)
}

// Documents fetches a paper's full text.
type Documents interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Abstracts looks up a paper's abstract in whichever catalog knows it.
type Abstracts interface {
	Abstract(ctx context.Context, paper core.Paper) (string, error)
}

// Store is the subset of the storage layer the summarizer needs.
type Store interface {
	UnsummarizedPapers() ([]core.Paper, error)
	UpdatePaperSummary(id, summary string) error
	InsertIdea(idea core.Idea) error
}

// Stage summarizes every paper that does not yet have a summary.
type Stage struct {
	oracle      Oracle
	documents   Documents
	abstracts   Abstracts
	store       Store
	tokenBudget int
}

// NewStage wires the summarization stage. tokenBudget bounds the size of a
// single oracle call; longer documents are chunked and reduced recursively.
func NewStage(store Store, oracle Oracle, documents Documents, abstracts Abstracts, tokenBudget int) *Stage {
	return &Stage{
		oracle:      oracle,
		documents:   documents,
		abstracts:   abstracts,
		store:       store,
		tokenBudget: tokenBudget,
	}
}

// Run summarizes the fetched papers plus any pending papers an earlier
// interrupted run left behind in the store. A failure on one paper is logged
// and absorbed; the paper stays unsummarized and the stage moves on. The
// returned slice holds the papers successfully summarized this round, each
// carrying its new summary.
func (s *Stage) Run(ctx context.Context, fetched []core.Paper) ([]core.Paper, error) {
	pending, err := s.store.UnsummarizedPapers()
	if err != nil {
		return nil, fmt.Errorf("loading pending papers: %w", err)
	}

	queue := make([]core.Paper, 0, len(fetched)+len(pending))
	queued := make(map[string]bool, len(fetched)+len(pending))
	for _, paper := range fetched {
		if paper.Summarized() || queued[paper.ID] {
			continue
		}
		queued[paper.ID] = true
		queue = append(queue, paper)
	}
	for _, paper := range pending {
		if queued[paper.ID] {
			continue
		}
		queued[paper.ID] = true
		queue = append(queue, paper)
	}

	var done []core.Paper
	for _, paper := range queue {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		summary, err := s.summarizeOne(ctx, paper)
		if err != nil {
			logger.Warn("paper summarization failed, skipping",
				"paper", paper.ID, "error", err.Error())
			continue
		}
		paper.Summary = summary
		done = append(done, paper)
	}
	logger.Info("summarization finished", "summarized", len(done), "pending", len(queue)-len(done))
	return done, nil
}

func (s *Stage) summarizeOne(ctx context.Context, paper core.Paper) (string, error) {
	fullText, summary, err := s.summarizeDocument(ctx, paper)
	if err != nil {
		logger.Debug("document summarization failed, falling back",
			"paper", paper.ID, "error", err.Error())
		summary, err = s.fallback(ctx, paper)
		if err != nil {
			return "", err
		}
	}

	if err := s.store.UpdatePaperSummary(paper.ID, summary); err != nil {
		return "", fmt.Errorf("storing summary: %w", err)
	}

	s.recordIdea(ctx, paper, fullText, summary)
	return summary, nil
}

// recordIdea derives a future-work note, from the full document text when one
// was obtained and from the condensed summary otherwise. Ideas are best-effort
// decoration; a failure here never undoes the already-stored summary.
func (s *Stage) recordIdea(ctx context.Context, paper core.Paper, fullText, summary string) {
	source := fullText
	if strings.TrimSpace(source) == "" {
		source = summary
	}

	idea, err := s.oracle.FutureIdeas(ctx, paper.Title, TrimHeadTail(source, s.tokenBudget))
	if err != nil {
		logger.Warn("future-work idea failed", "paper", paper.ID, "error", err.Error())
		return
	}
	if err := s.store.InsertIdea(core.Idea{PaperID: paper.ID, Text: idea}); err != nil {
		logger.Warn("storing idea failed", "paper", paper.ID, "error", err.Error())
	}
}

// summarizeDocument fetches the full text and reduces it to one summary. Text
// over the token budget is split into chunks, each chunk summarized, and the
// joined partials reduced again until one call fits. The fetched text is
// returned alongside the summary so the idea prompt can use it.
func (s *Stage) summarizeDocument(ctx context.Context, paper core.Paper) (string, string, error) {
	text, err := s.documents.FetchText(ctx, paper.PDFURL)
	if err != nil {
		return "", "", err
	}
	summary, err := s.reduce(ctx, text)
	if err != nil {
		return "", "", err
	}
	return text, summary, nil
}

func (s *Stage) reduce(ctx context.Context, text string) (string, error) {
	chunks := SplitByTokens(text, s.tokenBudget)
	if len(chunks) == 1 {
		return s.oracle.Summarize(ctx, chunks[0])
	}

	partials := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		partial, err := s.oracle.Summarize(ctx, chunk)
		if err != nil {
			return "", err
		}
		partials = append(partials, partial)
	}
	return s.reduce(ctx, strings.Join(partials, "\n\n"))
}

// fallback races the catalog abstract lookup against a title-only oracle
// summary. Both run; when both succeed the abstract wins, because it is the
// authors' own text rather than a guess.
func (s *Stage) fallback(ctx context.Context, paper core.Paper) (string, error) {
	var abstract, titleSummary string
	var abstractErr, titleErr error

	var g errgroup.Group
	g.Go(func() error {
		abstract, abstractErr = s.abstracts.Abstract(ctx, paper)
		return nil
	})
	g.Go(func() error {
		titleSummary, titleErr = s.oracle.TitleSummary(ctx, paper.Title)
		return nil
	})
	_ = g.Wait()

	switch {
	case abstractErr == nil && strings.TrimSpace(abstract) != "":
		return abstract, nil
	case titleErr == nil && strings.TrimSpace(titleSummary) != "":
		return titleSummary, nil
	default:
		return "", fmt.Errorf("all summary paths failed: abstract: %v, title: %v", abstractErr, titleErr)
	}
}
