package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"paperguild/internal/core"
)

// doiPattern validates the DOI we use as the Semantic Scholar paper id.
// Records without a well-formed DOI are skipped rather than stored under an
// unstable id.
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// S2Client queries the Semantic Scholar academic graph API.
type S2Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewS2Client creates a Semantic Scholar client. The API key is optional and
// only raises the rate limit.
func NewS2Client(baseURL, apiKey string, timeout time.Duration) *S2Client {
	return &S2Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Source.
func (c *S2Client) Name() string { return "Semantic Scholar" }

type s2SearchResponse struct {
	Data []s2Paper `json:"data"`
}

type s2Paper struct {
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	PublicationDate string `json:"publicationDate"`
	// externalIds mixes value types (DOI is a string, CorpusId a number), so
	// it decodes as any and the DOI is extracted per record.
	ExternalIDs   map[string]any `json:"externalIds"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// Search implements Source. Papers without a well-formed DOI are dropped;
// everything else about a malformed record is unusable as a stable identity.
func (c *S2Client) Search(ctx context.Context, topic string, days, maxResults int) ([]core.Paper, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("query", topic)
	params.Set("limit", fmt.Sprintf("%d", maxResults))
	params.Set("fields", "title,abstract,publicationDate,externalIds,openAccessPdf")
	params.Set("publicationDateOrYear", cutoff.Format("2006-01-02")+":")

	var result s2SearchResponse
	if err := c.get(ctx, "/paper/search", params, &result); err != nil {
		return nil, err
	}

	papers := make([]core.Paper, 0, len(result.Data))
	for _, record := range result.Data {
		paper, ok := recordToPaper(record)
		if !ok {
			continue
		}
		papers = append(papers, paper)
	}
	return papers, nil
}

// AbstractByTitle searches for a paper by its exact title and returns the
// abstract of the best match.
func (c *S2Client) AbstractByTitle(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("query", title)
	params.Set("limit", "1")
	params.Set("fields", "title,abstract")

	var result s2SearchResponse
	if err := c.get(ctx, "/paper/search", params, &result); err != nil {
		return "", err
	}
	if len(result.Data) == 0 {
		return "", fmt.Errorf("semanticscholar: no match for title %q", title)
	}
	abstract := strings.TrimSpace(result.Data[0].Abstract)
	if abstract == "" {
		return "", fmt.Errorf("semanticscholar: match for %q has no abstract", title)
	}
	return abstract, nil
}

func (c *S2Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("semanticscholar: building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("semanticscholar: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("semanticscholar: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("semanticscholar: decoding response: %w", err)
	}
	return nil
}

func recordToPaper(record s2Paper) (core.Paper, bool) {
	raw, _ := record.ExternalIDs["DOI"].(string)
	doi := strings.TrimSpace(raw)
	if !doiPattern.MatchString(doi) {
		return core.Paper{}, false
	}
	title := normalizeWhitespace(record.Title)
	if title == "" {
		return core.Paper{}, false
	}

	paper := core.Paper{
		ID:     doi,
		Title:  title,
		Source: "Semantic Scholar",
	}
	if record.OpenAccessPDF != nil {
		paper.PDFURL = record.OpenAccessPDF.URL
	}
	if published, err := time.Parse("2006-01-02", record.PublicationDate); err == nil {
		paper.CreatedAt = published.UTC()
	}
	return paper, true
}
