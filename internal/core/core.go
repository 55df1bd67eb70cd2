package core

import (
	"strings"
	"time"
)

// Paper represents one discovered research paper as it flows through the
// pipeline. Fields owned by later stages stay at their zero value until the
// owning stage fills them in.
type Paper struct {
	ID             string    `json:"id"`              // "arxiv:<accession>" or a normalized DOI
	Title          string    `json:"title"`           // Paper title
	PDFURL         string    `json:"pdf_url"`         // Direct document URL, may be empty
	Source         string    `json:"source"`          // Catalog that produced the record
	Summary        string    `json:"summary"`         // Empty until the summarization stage succeeds
	Embedding      []float64 `json:"embedding"`       // Lazily computed from Summary; nil means "not yet"
	ScoreNovelty   string    `json:"score_novelty"`   // 0-10, stored as text, empty until critiqued
	ScoreMethod    string    `json:"score_method"`    // 0-10, stored as text
	ScoreRelevance string    `json:"score_relevance"` // 0-10, stored as text
	Critique       string    `json:"critique"`        // Free-text review, empty until critiqued
	CreatedAt      time.Time `json:"created_at"`      // Assigned at first persistence
}

// Summarized reports whether the paper carries a non-empty summary.
func (p Paper) Summarized() bool {
	return p.Summary != ""
}

// ArxivID returns the bare accession number for arXiv papers, or "" for
// DOI-keyed papers.
func (p Paper) ArxivID() string {
	if rest, ok := strings.CutPrefix(p.ID, "arxiv:"); ok {
		return rest
	}
	return ""
}

// Trend is one topical cluster in the latest trend snapshot.
type Trend struct {
	Label      string    `json:"label"`       // Top TF-IDF terms joined with " / "
	PaperIDs   []string  `json:"paper_ids"`   // Member paper ids, newest-created first
	Count      int       `json:"count"`       // Members created in the current 7-day window
	Growth     float64   `json:"growth"`      // Week-over-week fractional change, 2 decimals
	ComputedAt time.Time `json:"computed_at"` // When the snapshot was taken
}

// Plan is the single stored reading plan. Only the latest plan is kept.
type Plan struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Idea is one append-only "future research directions" note for a paper.
type Idea struct {
	PaperID   string    `json:"paper_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatus enumerates the lifecycle of a submitted pipeline run.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job tracks one pipeline run submitted through the jobs API.
type Job struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Days       int       `json:"days"`
	MaxResults int       `json:"max_results"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"` // Short error text when Status is failed
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Result is the artifact snapshot captured when a job finishes.
type Result struct {
	JobID       string  `json:"job_id"`
	ReadingPlan string  `json:"reading_plan"`
	Trends      []Trend `json:"trends"`
	Papers      []Paper `json:"papers"`
	Ideas       []Idea  `json:"ideas"`
}
