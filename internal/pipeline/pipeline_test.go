package pipeline

import (
	"context"
	"errors"
	"testing"

	"paperguild/internal/core"
)

type stageRecorder struct {
	order []string
}

type fakeFetcher struct {
	rec    *stageRecorder
	papers []core.Paper
	err    error
}

func (f *fakeFetcher) Run(ctx context.Context, topic string, days, maxResults int) ([]core.Paper, error) {
	f.rec.order = append(f.rec.order, "fetch")
	return f.papers, f.err
}

type fakeListStage struct {
	rec   *stageRecorder
	name  string
	out   []core.Paper
	err   error
	panic bool
	got   []core.Paper
}

func (f *fakeListStage) Run(ctx context.Context, papers []core.Paper) ([]core.Paper, error) {
	if f.panic {
		panic("oracle SDK blew up")
	}
	f.rec.order = append(f.rec.order, f.name)
	f.got = papers
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type fakeTrender struct {
	rec    *stageRecorder
	trends []core.Trend
}

func (f *fakeTrender) Run(ctx context.Context) ([]core.Trend, error) {
	f.rec.order = append(f.rec.order, "trends")
	return f.trends, nil
}

type fakePlanner struct {
	rec  *stageRecorder
	text string
}

func (f *fakePlanner) Run(ctx context.Context) (string, error) {
	f.rec.order = append(f.rec.order, "plan")
	return f.text, nil
}

func newTestPipeline(rec *stageRecorder) (*Pipeline, *fakeFetcher, *fakeListStage, *fakeListStage) {
	fetcher := &fakeFetcher{rec: rec, papers: []core.Paper{{ID: "arxiv:1"}}}
	summarizer := &fakeListStage{rec: rec, name: "summarize",
		out: []core.Paper{{ID: "arxiv:1", Summary: "s"}}}
	critic := &fakeListStage{rec: rec, name: "critique",
		out: []core.Paper{{ID: "arxiv:1", Summary: "s", Critique: "fine"}}}
	trender := &fakeTrender{rec: rec, trends: []core.Trend{{Label: "x / y / z"}}}
	planner := &fakePlanner{rec: rec, text: "read this"}
	return New(fetcher, summarizer, critic, trender, planner), fetcher, summarizer, critic
}

func TestRunExecutesStagesInOrder(t *testing.T) {
	rec := &stageRecorder{}
	p, fetcher, summarizer, critic := newTestPipeline(rec)

	var lines []string
	outcome, err := p.Run(context.Background(), Params{Topic: "t", Days: 2, MaxResults: 25},
		func(line string) { lines = append(lines, line) })
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"fetch", "summarize", "critique", "trends", "plan"}
	if len(rec.order) != len(want) {
		t.Fatalf("expected %v, got %v", want, rec.order)
	}
	for i := range want {
		if rec.order[i] != want[i] {
			t.Fatalf("stage order wrong: expected %v, got %v", want, rec.order)
		}
	}

	if outcome.Fetched != 1 || outcome.Summarized != 1 || outcome.Reviewed != 1 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if outcome.ReadingPlan != "read this" {
		t.Errorf("unexpected plan: %q", outcome.ReadingPlan)
	}

	// The item list threads through: fetch output into summarize, summarize
	// output into critique.
	if len(summarizer.got) != 1 || summarizer.got[0].ID != fetcher.papers[0].ID {
		t.Errorf("summarizer should receive the fetched papers, got %v", summarizer.got)
	}
	if len(critic.got) != 1 || critic.got[0].Summary != "s" {
		t.Errorf("critic should receive the summarized papers, got %v", critic.got)
	}

	if len(lines) == 0 || lines[len(lines)-1] != DoneMarker {
		t.Errorf("log must end with the done marker, got %v", lines)
	}
}

func TestRunAbortsOnStageError(t *testing.T) {
	rec := &stageRecorder{}
	p, _, summarizer, critic := newTestPipeline(rec)
	summarizer.err = errors.New("model quota exhausted")

	var lines []string
	_, err := p.Run(context.Background(), Params{}, func(line string) { lines = append(lines, line) })
	if err == nil {
		t.Fatal("expected stage error to abort the run")
	}

	// Later stages never run.
	for _, stage := range rec.order {
		if stage == "critique" || stage == "trends" || stage == "plan" {
			t.Errorf("stage %s ran after failure", stage)
		}
	}
	_ = critic

	// The marker still terminates the log.
	if len(lines) == 0 || lines[len(lines)-1] != DoneMarker {
		t.Errorf("log must end with the done marker even on failure, got %v", lines)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	rec := &stageRecorder{}
	p, _, summarizer, _ := newTestPipeline(rec)
	summarizer.panic = true

	var lines []string
	_, err := p.Run(context.Background(), Params{}, func(line string) { lines = append(lines, line) })
	if err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if len(lines) == 0 || lines[len(lines)-1] != DoneMarker {
		t.Errorf("log must end with the done marker after a panic, got %v", lines)
	}
}

func TestRunNilLogFunc(t *testing.T) {
	rec := &stageRecorder{}
	p, _, _, _ := newTestPipeline(rec)

	if _, err := p.Run(context.Background(), Params{}, nil); err != nil {
		t.Fatalf("Run with nil log func failed: %v", err)
	}
}

func TestStageProgression(t *testing.T) {
	order := []Stage{StageFetch, StageSummarize, StageCritique, StageTrends, StagePlan, StageDone}
	for i := 0; i < len(order)-1; i++ {
		if got := order[i].next(); got != order[i+1] {
			t.Errorf("%s.next() = %s, want %s", order[i], got, order[i+1])
		}
	}
	if StageDone.next() != StageDone {
		t.Error("done must be terminal")
	}
}
