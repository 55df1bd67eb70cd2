// Package pipeline drives one full digest run through its stages. The stage
// order is a fixed linear progression expressed as an explicit state machine;
// each stage hands its output to the next through the run payload.
package pipeline

import (
	"context"
	"fmt"

	"paperguild/internal/core"
	"paperguild/internal/logger"
)

// DoneMarker is the final line of every run log, success or failure. Log
// consumers stream until they see it.
const DoneMarker = "__DONE__"

// Stage identifies one step of the run.
type Stage int

const (
	StageFetch Stage = iota
	StageSummarize
	StageCritique
	StageTrends
	StagePlan
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageSummarize:
		return "summarize"
	case StageCritique:
		return "critique"
	case StageTrends:
		return "trends"
	case StagePlan:
		return "plan"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// next returns the stage that follows s. The progression is linear; there is
// no branching and no way back.
func (s Stage) next() Stage {
	switch s {
	case StageFetch:
		return StageSummarize
	case StageSummarize:
		return StageCritique
	case StageCritique:
		return StageTrends
	case StageTrends:
		return StagePlan
	default:
		return StageDone
	}
}

// Fetcher is the fetch stage.
type Fetcher interface {
	Run(ctx context.Context, topic string, days, maxResults int) ([]core.Paper, error)
}

// Summarizer is the summarization stage. It takes the run's fetched papers
// and returns the subset it summarized.
type Summarizer interface {
	Run(ctx context.Context, fetched []core.Paper) ([]core.Paper, error)
}

// Critic is the critique stage. It takes the run's summarized papers and
// returns the subset it reviewed.
type Critic interface {
	Run(ctx context.Context, summarized []core.Paper) ([]core.Paper, error)
}

// Trender is the trend stage.
type Trender interface {
	Run(ctx context.Context) ([]core.Trend, error)
}

// Planner is the plan stage.
type Planner interface {
	Run(ctx context.Context) (string, error)
}

// Params are the per-run inputs.
type Params struct {
	Topic      string
	Days       int
	MaxResults int
}

// Outcome is what a completed run produced.
type Outcome struct {
	Fetched     int
	Summarized  int
	Reviewed    int
	Trends      []core.Trend
	ReadingPlan string
}

// LogFunc receives one progress line per event. The pipeline always emits
// DoneMarker last.
type LogFunc func(line string)

// Pipeline owns the five stages.
type Pipeline struct {
	fetcher    Fetcher
	summarizer Summarizer
	critic     Critic
	trender    Trender
	planner    Planner
}

// New assembles a pipeline from its stages.
func New(fetcher Fetcher, summarizer Summarizer, critic Critic, trender Trender, planner Planner) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		summarizer: summarizer,
		critic:     critic,
		trender:    trender,
		planner:    planner,
	}
}

// Run executes the stages in order. The first stage error aborts the run;
// partial results already persisted by earlier stages stay persisted. A panic
// inside a stage is captured and returned as an error so a wedged oracle SDK
// cannot take the process down. logf always receives DoneMarker as its last
// line.
func (p *Pipeline) Run(ctx context.Context, params Params, logf LogFunc) (outcome Outcome, err error) {
	if logf == nil {
		logf = func(string) {}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
		if err != nil {
			logf(fmt.Sprintf("run failed: %v", err))
		}
		logf(DoneMarker)
	}()

	// The payload threads the run's item list through fetch, summarize and
	// critique; the trend and plan stages work the full store and pass it
	// through untouched.
	var payload []core.Paper

	for stage := StageFetch; stage != StageDone; stage = stage.next() {
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		logger.Info("stage starting", "stage", stage.String())
		logf(fmt.Sprintf("stage %s: starting", stage))

		switch stage {
		case StageFetch:
			papers, ferr := p.fetcher.Run(ctx, params.Topic, params.Days, params.MaxResults)
			if ferr != nil {
				return outcome, fmt.Errorf("fetch stage: %w", ferr)
			}
			payload = papers
			outcome.Fetched = len(papers)
			logf(fmt.Sprintf("stage fetch: %d new papers", len(papers)))

		case StageSummarize:
			summarized, serr := p.summarizer.Run(ctx, payload)
			if serr != nil {
				return outcome, fmt.Errorf("summarize stage: %w", serr)
			}
			payload = summarized
			outcome.Summarized = len(summarized)
			logf(fmt.Sprintf("stage summarize: %d papers summarized", len(summarized)))

		case StageCritique:
			reviewed, cerr := p.critic.Run(ctx, payload)
			if cerr != nil {
				return outcome, fmt.Errorf("critique stage: %w", cerr)
			}
			payload = reviewed
			outcome.Reviewed = len(reviewed)
			logf(fmt.Sprintf("stage critique: %d papers reviewed", len(reviewed)))

		case StageTrends:
			trends, terr := p.trender.Run(ctx)
			if terr != nil {
				return outcome, fmt.Errorf("trends stage: %w", terr)
			}
			outcome.Trends = trends
			logf(fmt.Sprintf("stage trends: %d trends", len(trends)))

		case StagePlan:
			plan, perr := p.planner.Run(ctx)
			if perr != nil {
				return outcome, fmt.Errorf("plan stage: %w", perr)
			}
			outcome.ReadingPlan = plan
			logf("stage plan: reading plan ready")
		}
	}

	return outcome, nil
}
