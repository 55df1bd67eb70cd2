// Package llm wraps the Gemini API behind the small set of oracle calls the
// pipeline stages make: summarization, review, plan drafting and embeddings.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model for text generation.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultEmbeddingModel is the default model for embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the embedding output size (Matryoshka).
	DefaultEmbeddingDimensions = int32(768)
)

const summarizePromptTemplate = `You are summarizing a research paper for a technical digest. Write a concise summary (150-250 words) covering the problem, the approach and the main results. Write only the summary, no meta-commentary.

---
%s
---`

const titleSummaryPromptTemplate = `The full text and abstract of this research paper are unavailable. Based only on its title, write a short, cautious summary (2-3 sentences) of what the paper most likely covers. Make clear the summary is inferred from the title alone.

Title: %s`

const reviewPromptTemplate = `You are a strict peer reviewer. Review the following paper summary and score it on three axes from 0 to 10: novelty, methodology and relevance to practitioners. Also write a short critique (2-4 sentences).

Title: %s

Summary:
%s`

const ideasPromptTemplate = `Based on the following paper, suggest one concrete direction for future work. One or two sentences, specific enough to act on.

Title: %s

Summary:
%s`

const planPromptTemplate = `You are preparing a reading plan for a researcher. For each of the papers below, write one entry saying what to focus on while reading and roughly how much time to spend. Order the entries as given. Keep the whole plan under 400 words.

%s`

// Config carries everything the client needs; nothing is read ambiently.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

// ReviewResult is the structured verdict of a paper review.
type ReviewResult struct {
	Novelty     int    `json:"novelty"`
	Methodology int    `json:"methodology"`
	Relevance   int    `json:"relevance"`
	Critique    string `json:"critique"`
}

// PlanCandidate is one scored paper handed to the plan prompt.
type PlanCandidate struct {
	Title   string
	Link    string
	Summary string
	Score   float64
}

// Client is a Gemini-backed oracle.
type Client struct {
	modelName      string
	embeddingModel string
	gClient        *genai.Client
}

// NewClient creates an oracle client from an explicit config.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required, set GEMINI_API_KEY or gemini.api_key in config")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:      model,
		embeddingModel: embeddingModel,
		gClient:        gClient,
	}, nil
}

// Summarize produces a digest summary of a paper's text (or of a batch of
// partial summaries during recursive reduction).
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(summarizePromptTemplate, text), nil)
}

// TitleSummary produces a best-effort summary from the title alone. Used as
// the last fallback when neither the document nor an abstract is reachable.
func (c *Client) TitleSummary(ctx context.Context, title string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(titleSummaryPromptTemplate, title), nil)
}

// Review scores a summary on three 0-10 axes and returns a short critique.
// The response is constrained to JSON by a response schema.
func (c *Client) Review(ctx context.Context, title, summary string) (ReviewResult, error) {
	prompt := fmt.Sprintf(reviewPromptTemplate, title, summary)

	text, err := c.generate(ctx, prompt, reviewSchema())
	if err != nil {
		return ReviewResult{}, err
	}

	var result ReviewResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return ReviewResult{}, fmt.Errorf("failed to parse review response: %w", err)
	}
	for name, score := range map[string]int{
		"novelty":     result.Novelty,
		"methodology": result.Methodology,
		"relevance":   result.Relevance,
	} {
		if score < 0 || score > 10 {
			return ReviewResult{}, fmt.Errorf("review %s score %d out of range", name, score)
		}
	}
	return result, nil
}

// FutureIdeas suggests a follow-up research direction for a paper.
func (c *Client) FutureIdeas(ctx context.Context, title, summary string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(ideasPromptTemplate, title, summary), nil)
}

// ReadingPlan drafts a prose reading plan over the ranked candidates.
func (c *Client) ReadingPlan(ctx context.Context, candidates []PlanCandidate) (string, error) {
	var sb strings.Builder
	for i, cand := range candidates {
		fmt.Fprintf(&sb, "%d. %s (score %.2f)\n", i+1, cand.Title, cand.Score)
		if cand.Link != "" {
			fmt.Fprintf(&sb, "%s\n", cand.Link)
		}
		fmt.Fprintf(&sb, "%s\n\n", cand.Summary)
	}
	return c.generate(ctx, fmt.Sprintf(planPromptTemplate, sb.String()), nil)
}

// Embed returns a 768-dimensional embedding of the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := DefaultEmbeddingDimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, val := range values {
		embedding[i] = float64(val)
	}
	return embedding, nil
}

func (c *Client) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	var config *genai.GenerateContentConfig
	if schema != nil {
		config = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

func reviewSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"novelty": {
				Type:        genai.TypeInteger,
				Description: "How novel the contribution is, 0-10",
			},
			"methodology": {
				Type:        genai.TypeInteger,
				Description: "How rigorous the methodology is, 0-10",
			},
			"relevance": {
				Type:        genai.TypeInteger,
				Description: "How relevant to practitioners, 0-10",
			},
			"critique": {
				Type:        genai.TypeString,
				Description: "A short critical assessment, 2-4 sentences",
			},
		},
		Required: []string{"novelty", "methodology", "relevance", "critique"},
	}
}
