package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"paperguild/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed record store shared by every pipeline stage.
// Each stage owns a disjoint set of paper columns; the store itself never
// decides what to write, it only enforces the insert/update/replace policies
// the stages rely on.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "paperguild.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *Store) initialize() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT,
			pdf_url TEXT,
			source TEXT,
			summary TEXT DEFAULT '',
			embedding TEXT DEFAULT '[]',
			score_novelty TEXT DEFAULT '',
			score_method TEXT DEFAULT '',
			score_relevance TEXT DEFAULT '',
			critique TEXT DEFAULT '',
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS future_ideas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			paper_id TEXT,
			ideas TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS trends (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trend_label TEXT,
			paper_ids TEXT,
			count INTEGER,
			growth REAL,
			computed_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_text TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			topic TEXT,
			days INTEGER,
			max_results INTEGER,
			status TEXT,
			error TEXT DEFAULT '',
			started_at DATETIME,
			finished_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS job_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT,
			msg TEXT,
			ts DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			job_id TEXT PRIMARY KEY,
			reading_plan TEXT,
			trends_json TEXT,
			papers_json TEXT,
			ideas_json TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			pwd_hash TEXT
		);`,
	}

	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------- papers --

// InsertPapers persists newly fetched papers with INSERT OR IGNORE so a
// concurrent fetch run racing on the same ids can neither fail on a
// duplicate key nor overwrite an existing row.
func (s *Store) InsertPapers(papers []core.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO papers (id, title, pdf_url, source, summary, embedding, created_at)
		VALUES (?, ?, ?, ?, '', '[]', ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range papers {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.Exec(p.ID, p.Title, p.PDFURL, p.Source, createdAt); err != nil {
			return fmt.Errorf("failed to insert paper %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// PaperIDs returns the id of every persisted paper.
func (s *Store) PaperIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM papers`)
	if err != nil {
		return nil, fmt.Errorf("failed to query paper ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan paper id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdatePaperSummary overwrites the summary column in full. Re-running the
// summarization stage replaces the old text rather than appending to it.
func (s *Store) UpdatePaperSummary(id, summary string) error {
	_, err := s.db.Exec(`UPDATE papers SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("failed to update summary for %s: %w", id, err)
	}
	return nil
}

// UpdatePaperEmbedding caches the computed embedding for a paper.
func (s *Store) UpdatePaperEmbedding(id string, embedding []float64) error {
	serialized, err := serializeEmbedding(embedding)
	if err != nil {
		return fmt.Errorf("failed to serialize embedding for %s: %w", id, err)
	}
	if _, err := s.db.Exec(`UPDATE papers SET embedding = ? WHERE id = ?`, serialized, id); err != nil {
		return fmt.Errorf("failed to update embedding for %s: %w", id, err)
	}
	return nil
}

// UpdatePaperReview sets all critique-owned columns in one update.
func (s *Store) UpdatePaperReview(id string, novelty, method, relevance int, critique string) error {
	_, err := s.db.Exec(`
		UPDATE papers
		SET score_novelty = ?, score_method = ?, score_relevance = ?, critique = ?
		WHERE id = ?`,
		fmt.Sprintf("%d", novelty), fmt.Sprintf("%d", method), fmt.Sprintf("%d", relevance), critique, id)
	if err != nil {
		return fmt.Errorf("failed to update review for %s: %w", id, err)
	}
	return nil
}

// GetPaper returns one paper by id, or nil when absent.
func (s *Store) GetPaper(id string) (*core.Paper, error) {
	row := s.db.QueryRow(paperSelect+` WHERE id = ?`, id)
	p, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// AllPapers returns every paper ordered by creation time ascending.
func (s *Store) AllPapers() ([]core.Paper, error) {
	return s.queryPapers(paperSelect + ` ORDER BY created_at`)
}

// SummarizedPapers returns all papers carrying a non-empty summary.
func (s *Store) SummarizedPapers() ([]core.Paper, error) {
	return s.queryPapers(paperSelect + ` WHERE summary != '' ORDER BY created_at`)
}

// UnsummarizedPapers returns all papers still lacking a summary.
func (s *Store) UnsummarizedPapers() ([]core.Paper, error) {
	return s.queryPapers(paperSelect + ` WHERE summary = '' ORDER BY created_at`)
}

// PapersSince returns summarized papers created at or after the cutoff.
func (s *Store) PapersSince(cutoff time.Time) ([]core.Paper, error) {
	return s.queryPapers(paperSelect+` WHERE summary != '' AND created_at >= ? ORDER BY created_at`, cutoff)
}

const paperSelect = `
	SELECT id, title, pdf_url, source, summary, embedding,
	       score_novelty, score_method, score_relevance, critique, created_at
	FROM papers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*core.Paper, error) {
	var p core.Paper
	var embeddingJSON string
	var createdAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.Title, &p.PDFURL, &p.Source, &p.Summary, &embeddingJSON,
		&p.ScoreNovelty, &p.ScoreMethod, &p.ScoreRelevance, &p.Critique, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	embedding, err := deserializeEmbedding([]byte(embeddingJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedding for %s: %w", p.ID, err)
	}
	p.Embedding = embedding

	return &p, nil
}

func (s *Store) queryPapers(query string, args ...any) ([]core.Paper, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()

	var papers []core.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}

// ----------------------------------------------------------------- ideas --

// InsertIdea appends a future-directions note for a paper. Many notes per
// paper are allowed; nothing is ever overwritten.
func (s *Store) InsertIdea(idea core.Idea) error {
	createdAt := idea.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO future_ideas (paper_id, ideas, created_at) VALUES (?, ?, ?)`,
		idea.PaperID, idea.Text, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert idea for %s: %w", idea.PaperID, err)
	}
	return nil
}

// LatestIdeas returns the most recent idea per paper.
func (s *Store) LatestIdeas() ([]core.Idea, error) {
	rows, err := s.db.Query(`
		SELECT paper_id, ideas, created_at FROM future_ideas
		WHERE id IN (SELECT MAX(id) FROM future_ideas GROUP BY paper_id)
		ORDER BY paper_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ideas: %w", err)
	}
	defer rows.Close()

	var ideas []core.Idea
	for rows.Next() {
		var idea core.Idea
		if err := rows.Scan(&idea.PaperID, &idea.Text, &idea.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

// ---------------------------------------------------------------- trends --

// ReplaceTrends swaps the stored snapshot for the given one inside a single
// transaction, so readers see either the old set or the new set and never a
// mix of both.
func (s *Store) ReplaceTrends(trends []core.Trend) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM trends`); err != nil {
		return fmt.Errorf("failed to clear trends: %w", err)
	}

	for _, trend := range trends {
		idsJSON, err := json.Marshal(trend.PaperIDs)
		if err != nil {
			return fmt.Errorf("failed to encode trend members: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO trends (trend_label, paper_ids, count, growth, computed_at)
			VALUES (?, ?, ?, ?, ?)`,
			trend.Label, string(idsJSON), trend.Count, trend.Growth, trend.ComputedAt)
		if err != nil {
			return fmt.Errorf("failed to insert trend %q: %w", trend.Label, err)
		}
	}

	return tx.Commit()
}

// LatestTrends returns the current snapshot in insertion order.
func (s *Store) LatestTrends() ([]core.Trend, error) {
	rows, err := s.db.Query(`SELECT trend_label, paper_ids, count, growth, computed_at FROM trends ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trends: %w", err)
	}
	defer rows.Close()

	var trends []core.Trend
	for rows.Next() {
		var trend core.Trend
		var idsJSON string
		if err := rows.Scan(&trend.Label, &idsJSON, &trend.Count, &trend.Growth, &trend.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trend: %w", err)
		}
		if err := json.Unmarshal([]byte(idsJSON), &trend.PaperIDs); err != nil {
			return nil, fmt.Errorf("failed to decode trend members: %w", err)
		}
		trends = append(trends, trend)
	}
	return trends, rows.Err()
}

// ----------------------------------------------------------------- plans --

// ReplacePlan stores the new reading plan, dropping any previous one inside
// the same transaction. The store keeps exactly one plan.
func (s *Store) ReplacePlan(plan core.Plan) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM plans`); err != nil {
		return fmt.Errorf("failed to clear plans: %w", err)
	}

	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.Exec(`INSERT INTO plans (plan_text, created_at) VALUES (?, ?)`, plan.Text, createdAt); err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	return tx.Commit()
}

// LatestPlan returns the stored plan, or nil if none exists yet.
func (s *Store) LatestPlan() (*core.Plan, error) {
	row := s.db.QueryRow(`SELECT plan_text, created_at FROM plans ORDER BY id DESC LIMIT 1`)

	var plan core.Plan
	err := row.Scan(&plan.Text, &plan.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	return &plan, nil
}

// ------------------------------------------------------------------ jobs --

// CreateJob records a newly submitted job in queued state.
func (s *Store) CreateJob(job core.Job) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, topic, days, max_results, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Topic, job.Days, job.MaxResults, string(core.JobQueued), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

// MarkJobRunning transitions a job to running.
func (s *Store) MarkJobRunning(id string) error {
	_, err := s.db.Exec(`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(core.JobRunning), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job %s running: %w", id, err)
	}
	return nil
}

// MarkJobDone transitions a job to done.
func (s *Store) MarkJobDone(id string) error {
	_, err := s.db.Exec(`UPDATE jobs SET status = ?, finished_at = ? WHERE id = ?`,
		string(core.JobDone), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job %s done: %w", id, err)
	}
	return nil
}

// MarkJobFailed transitions a job to failed with a short error text.
func (s *Store) MarkJobFailed(id, errText string) error {
	_, err := s.db.Exec(`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(core.JobFailed), errText, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}
	return nil
}

// GetJob returns a job by id, or nil when absent.
func (s *Store) GetJob(id string) (*core.Job, error) {
	row := s.db.QueryRow(`
		SELECT id, topic, days, max_results, status, error, started_at, finished_at
		FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns jobs newest-first, optionally filtered by status.
func (s *Store) ListJobs(status core.JobStatus) ([]core.Job, error) {
	query := `
		SELECT id, topic, days, max_results, status, error, started_at, finished_at
		FROM jobs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []core.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*core.Job, error) {
	var job core.Job
	var status string
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(&job.ID, &job.Topic, &job.Days, &job.MaxResults, &status, &job.Error, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	job.Status = core.JobStatus(status)
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}
	return &job, nil
}

// AppendJobLog appends one log line to a job's stream.
func (s *Store) AppendJobLog(jobID, msg string) error {
	_, err := s.db.Exec(`INSERT INTO job_logs (job_id, msg, ts) VALUES (?, ?, ?)`,
		jobID, msg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append log for job %s: %w", jobID, err)
	}
	return nil
}

// JobLog returns the accumulated log lines for a job in order.
func (s *Store) JobLog(jobID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT msg FROM job_logs WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("failed to scan log line: %w", err)
		}
		lines = append(lines, msg)
	}
	return lines, rows.Err()
}

// --------------------------------------------------------------- results --

// SaveResult stores the artifact snapshot for a finished job.
func (s *Store) SaveResult(result core.Result) error {
	trendsJSON, err := json.Marshal(result.Trends)
	if err != nil {
		return fmt.Errorf("failed to encode trends: %w", err)
	}
	papersJSON, err := json.Marshal(result.Papers)
	if err != nil {
		return fmt.Errorf("failed to encode papers: %w", err)
	}
	ideasJSON, err := json.Marshal(result.Ideas)
	if err != nil {
		return fmt.Errorf("failed to encode ideas: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO results (job_id, reading_plan, trends_json, papers_json, ideas_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		result.JobID, result.ReadingPlan, string(trendsJSON), string(papersJSON), string(ideasJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save result for job %s: %w", result.JobID, err)
	}
	return nil
}

// GetResult returns a job's snapshot, or nil when not ready.
func (s *Store) GetResult(jobID string) (*core.Result, error) {
	row := s.db.QueryRow(`
		SELECT job_id, reading_plan, trends_json, papers_json, ideas_json
		FROM results WHERE job_id = ?`, jobID)

	var result core.Result
	var trendsJSON, papersJSON, ideasJSON string
	err := row.Scan(&result.JobID, &result.ReadingPlan, &trendsJSON, &papersJSON, &ideasJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}

	if err := json.Unmarshal([]byte(trendsJSON), &result.Trends); err != nil {
		return nil, fmt.Errorf("failed to decode trends: %w", err)
	}
	if err := json.Unmarshal([]byte(papersJSON), &result.Papers); err != nil {
		return nil, fmt.Errorf("failed to decode papers: %w", err)
	}
	if err := json.Unmarshal([]byte(ideasJSON), &result.Ideas); err != nil {
		return nil, fmt.Errorf("failed to decode ideas: %w", err)
	}
	return &result, nil
}

// ----------------------------------------------------------------- users --

// UpsertUser stores a username with its bcrypt password hash.
func (s *Store) UpsertUser(username, pwdHash string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO users (username, pwd_hash) VALUES (?, ?)`, username, pwdHash)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", username, err)
	}
	return nil
}

// UserHash returns the stored password hash for a username, or "" when the
// user does not exist.
func (s *Store) UserHash(username string) (string, error) {
	row := s.db.QueryRow(`SELECT pwd_hash FROM users WHERE username = ?`, username)

	var hash string
	err := row.Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to scan user hash: %w", err)
	}
	return hash, nil
}

// ------------------------------------------------------------------ wipe --

// Wipe deletes every row from every table, keeping the schema intact.
func (s *Store) Wipe() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{"papers", "future_ideas", "trends", "plans", "jobs", "job_logs", "results"}
	for _, table := range tables {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s table: %w", table, err)
		}
	}

	return tx.Commit()
}

// ------------------------------------------------------------- embedding --

func serializeEmbedding(embedding []float64) ([]byte, error) {
	if embedding == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(embedding)
}

func deserializeEmbedding(data []byte) ([]float64, error) {
	if len(data) == 0 || string(data) == "[]" {
		return nil, nil
	}
	var embedding []float64
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, err
	}
	return embedding, nil
}
