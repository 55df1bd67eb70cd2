package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

const maxDocumentBytes = 50 << 20

// DocumentFetcher downloads a paper's document and extracts plain text from
// it. PDF and HTML responses are both handled; the body is sniffed rather
// than trusting the Content-Type header, because open-access mirrors lie.
type DocumentFetcher struct {
	client *http.Client
}

// NewDocumentFetcher creates a fetcher with the given request timeout.
func NewDocumentFetcher(timeout time.Duration) *DocumentFetcher {
	return &DocumentFetcher{client: &http.Client{Timeout: timeout}}
}

// FetchText downloads the document at url and returns its plain text.
func (f *DocumentFetcher) FetchText(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("no document URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building document request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching document %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching document %s: status code %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("reading document %s: %w", url, err)
	}

	var text string
	if bytes.HasPrefix(data, []byte("%PDF")) {
		text, err = extractPDFText(data)
	} else {
		text, err = extractHTMLText(data)
	}
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", url, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("document %s yielded no text", url)
	}
	return text, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var textBuilder strings.Builder
	pageCount := reader.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Keep going; a single unreadable page should not sink the paper.
			continue
		}
		textBuilder.WriteString(pageText)
		textBuilder.WriteString("\n\n")
	}
	return cleanText(textBuilder.String()), nil
}

func extractHTMLText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript").Remove()

	var textBuilder strings.Builder
	selection := doc.Find("article, main, [role='main']")
	if selection.Length() == 0 {
		selection = doc.Find("body")
	}
	selection.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
		textBuilder.WriteString(strings.TrimSpace(item.Text()))
		textBuilder.WriteString("\n\n")
	})
	return cleanText(textBuilder.String()), nil
}

// cleanText drops empty and near-empty lines and collapses the rest.
func cleanText(raw string) string {
	lines := strings.Split(raw, "\n")
	cleanLines := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 2 {
			cleanLines = append(cleanLines, trimmed)
		}
	}
	return strings.TrimSpace(strings.Join(cleanLines, "\n"))
}
