package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paperguild/internal/auth"
	"paperguild/internal/config"
	"paperguild/internal/core"
)

type fakeJobs struct {
	submitted []string
	jobID     string
	err       error
}

func (f *fakeJobs) Submit(topic string, days, maxResults int) (string, error) {
	f.submitted = append(f.submitted, topic)
	return f.jobID, f.err
}

type fakeStore struct {
	jobs    map[string]*core.Job
	logs    map[string][]string
	results map[string]*core.Result
	users   map[string]string
	wiped   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    make(map[string]*core.Job),
		logs:    make(map[string][]string),
		results: make(map[string]*core.Result),
		users:   make(map[string]string),
	}
}

func (f *fakeStore) GetJob(id string) (*core.Job, error) { return f.jobs[id], nil }

func (f *fakeStore) ListJobs(status core.JobStatus) ([]core.Job, error) {
	var jobs []core.Job
	for _, job := range f.jobs {
		if status == "" || job.Status == status {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

func (f *fakeStore) JobLog(jobID string) ([]string, error) { return f.logs[jobID], nil }

func (f *fakeStore) GetResult(jobID string) (*core.Result, error) { return f.results[jobID], nil }

func (f *fakeStore) Wipe() error {
	f.wiped = true
	return nil
}

func (f *fakeStore) Ping() error { return nil }

func (f *fakeStore) UpsertUser(username, pwdHash string) error {
	f.users[username] = pwdHash
	return nil
}

func (f *fakeStore) UserHash(username string) (string, error) { return f.users[username], nil }

func testConfig() (config.Server, config.Pipeline) {
	return config.Server{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}, config.Pipeline{
			Topic:      "ai safety",
			Days:       2,
			MaxResults: 25,
		}
}

func newTestServer(t *testing.T, store *fakeStore, jobs *fakeJobs) *Server {
	t.Helper()
	authn := auth.New(store)
	if err := authn.EnsureUser("admin", "secret"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	serverCfg, pipelineCfg := testConfig()
	return New(store, jobs, authn, serverCfg, pipelineCfg)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newFakeStore(), &fakeJobs{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("unexpected health response: %+v", resp)
	}
}

func TestSubmitJob(t *testing.T) {
	jobs := &fakeJobs{jobID: "job-1"}
	s := newTestServer(t, newFakeStore(), jobs)

	body := strings.NewReader(`{"topic": "interpretability", "days": 3}`)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SubmitJobResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.JobID != "job-1" {
		t.Errorf("unexpected job id %q", resp.JobID)
	}
	if len(jobs.submitted) != 1 || jobs.submitted[0] != "interpretability" {
		t.Errorf("unexpected submissions: %v", jobs.submitted)
	}
}

func TestSubmitJobEmptyBodyUsesDefaults(t *testing.T) {
	jobs := &fakeJobs{jobID: "job-1"}
	s := newTestServer(t, newFakeStore(), jobs)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(jobs.submitted) != 1 || jobs.submitted[0] != "ai safety" {
		t.Errorf("expected configured default topic, got %v", jobs.submitted)
	}
}

func TestGetJobWithLog(t *testing.T) {
	store := newFakeStore()
	store.jobs["job-1"] = &core.Job{ID: "job-1", Status: core.JobRunning}
	store.logs["job-1"] = []string{"stage fetch: starting", "stage fetch: 3 new papers"}
	s := newTestServer(t, store, &fakeJobs{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp JobResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Job.ID != "job-1" {
		t.Errorf("unexpected job: %+v", resp.Job)
	}
	if !strings.Contains(resp.Log, "3 new papers") {
		t.Errorf("log should be attached, got %q", resp.Log)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestServer(t, newFakeStore(), &fakeJobs{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetResult(t *testing.T) {
	store := newFakeStore()
	store.jobs["job-1"] = &core.Job{ID: "job-1", Status: core.JobDone}
	store.results["job-1"] = &core.Result{JobID: "job-1", ReadingPlan: "read these"}
	s := newTestServer(t, store, &fakeJobs{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-1/result", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp core.Result
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ReadingPlan != "read these" {
		t.Errorf("unexpected result: %+v", resp)
	}
}

func TestGetResultUnfinishedJob(t *testing.T) {
	store := newFakeStore()
	store.jobs["job-1"] = &core.Job{ID: "job-1", Status: core.JobRunning}
	s := newTestServer(t, store, &fakeJobs{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-1/result", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a running job, got %d", rec.Code)
	}
}

func TestWipeRequiresAuth(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store, &fakeJobs{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/wipe", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}
	if store.wiped {
		t.Fatal("wipe must not run without credentials")
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/wipe", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong password, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/wipe", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid credentials, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.wiped {
		t.Error("wipe should have run")
	}
}
