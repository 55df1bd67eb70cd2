package summarize

import (
	"math"
	"strings"
	"unicode/utf8"
)

// EstimateTokens provides a rough token count for text.
// Approximation: 1 token is roughly 3.5 characters of English prose.
func EstimateTokens(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")

	charCount := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(charCount) / 3.5))
}

// SplitByTokens splits text into chunks of at most budget estimated tokens.
// Splits happen on paragraph boundaries when possible, falling back to a hard
// character cut for paragraphs that alone exceed the budget.
func SplitByTokens(text string, budget int) []string {
	if budget <= 0 || EstimateTokens(text) <= budget {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if EstimateTokens(paragraph) > budget {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, hardSplit(paragraph, budget)...)
			continue
		}

		if current.Len() > 0 && EstimateTokens(current.String()+"\n\n"+paragraph) > budget {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// TrimHeadTail shortens text to roughly budget estimated tokens by keeping
// the opening and closing halves and dropping the middle. Papers front-load
// their contribution and close with findings, so both ends carry the signal.
func TrimHeadTail(text string, budget int) string {
	if budget <= 0 || EstimateTokens(text) <= budget {
		return text
	}

	runes := []rune(text)
	half := int(float64(budget) * 3.5 / 2)
	if half < 1 {
		half = 1
	}
	if half*2 >= len(runes) {
		return text
	}
	return string(runes[:half]) + "\n...\n" + string(runes[len(runes)-half:])
}

// hardSplit cuts text into budget-sized pieces on rune boundaries.
func hardSplit(text string, budget int) []string {
	maxChars := int(float64(budget) * 3.5)
	if maxChars < 1 {
		maxChars = 1
	}

	var chunks []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += maxChars {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
