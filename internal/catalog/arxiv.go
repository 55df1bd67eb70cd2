package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"paperguild/internal/core"
)

// ArxivIDPrefix marks paper ids originating from arXiv.
const ArxivIDPrefix = "arxiv:"

var arxivVersionSuffix = regexp.MustCompile(`v\d+$`)

// ArxivClient queries the arXiv Atom API.
type ArxivClient struct {
	baseURL string
	client  *http.Client
}

// NewArxivClient creates a client for the arXiv API at baseURL.
func NewArxivClient(baseURL string, timeout time.Duration) *ArxivClient {
	return &ArxivClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Source.
func (c *ArxivClient) Name() string { return "arXiv" }

// atomFeed mirrors the subset of the Atom response we consume.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// Search implements Source. The submitted-date window is expressed in the
// YYYYMMDDHHMM format the arXiv query language expects.
func (c *ArxivClient) Search(ctx context.Context, topic string, days, maxResults int) ([]core.Paper, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -days)
	query := fmt.Sprintf(`all:%q AND submittedDate:[%s TO %s]`,
		topic, start.Format("200601021504"), now.Format("200601021504"))

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	feed, err := c.fetchFeed(ctx, params)
	if err != nil {
		return nil, err
	}

	papers := make([]core.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		paper, ok := entryToPaper(entry)
		if !ok {
			continue
		}
		papers = append(papers, paper)
	}
	return papers, nil
}

// Abstract looks up the abstract of a single known paper by its id.
func (c *ArxivClient) Abstract(ctx context.Context, id string) (string, error) {
	shortID := strings.TrimPrefix(id, ArxivIDPrefix)

	params := url.Values{}
	params.Set("id_list", shortID)
	params.Set("max_results", "1")

	feed, err := c.fetchFeed(ctx, params)
	if err != nil {
		return "", err
	}
	if len(feed.Entries) == 0 {
		return "", fmt.Errorf("arxiv: no entry for %s", shortID)
	}
	abstract := strings.TrimSpace(feed.Entries[0].Summary)
	if abstract == "" {
		return "", fmt.Errorf("arxiv: empty abstract for %s", shortID)
	}
	return abstract, nil
}

func (c *ArxivClient) fetchFeed(ctx context.Context, params url.Values) (*atomFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("arxiv: reading response: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: parsing feed: %w", err)
	}
	return &feed, nil
}

func entryToPaper(entry atomEntry) (core.Paper, bool) {
	shortID := shortArxivID(entry.ID)
	if shortID == "" {
		return core.Paper{}, false
	}

	paper := core.Paper{
		ID:     ArxivIDPrefix + shortID,
		Title:  normalizeWhitespace(entry.Title),
		PDFURL: fmt.Sprintf("https://arxiv.org/pdf/%s", shortID),
		Source: "arXiv",
	}
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			paper.PDFURL = link.Href
			break
		}
	}
	if published, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		paper.CreatedAt = published.UTC()
	}
	if paper.Title == "" {
		return core.Paper{}, false
	}
	return paper, true
}

// shortArxivID reduces an Atom entry id like
// http://arxiv.org/abs/2401.12345v2 to 2401.12345.
func shortArxivID(entryID string) string {
	idx := strings.LastIndex(entryID, "/abs/")
	if idx < 0 {
		return ""
	}
	id := entryID[idx+len("/abs/"):]
	return arxivVersionSuffix.ReplaceAllString(id, "")
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
