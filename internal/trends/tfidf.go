package trends

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const maxVocabulary = 3000

var tokenPattern = regexp.MustCompile(`[a-z][a-z0-9-]+`)

var stopwords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"all": true, "also": true, "an": true, "and": true, "any": true,
	"are": true, "as": true, "at": true, "be": true, "because": true,
	"been": true, "between": true, "both": true, "but": true, "by": true,
	"can": true, "could": true, "do": true, "does": true, "each": true,
	"for": true, "from": true, "further": true, "had": true, "has": true,
	"have": true, "how": true, "however": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "may": true,
	"more": true, "most": true, "new": true, "no": true, "not": true,
	"of": true, "on": true, "one": true, "only": true, "or": true,
	"other": true, "our": true, "over": true, "paper": true, "propose": true,
	"proposed": true, "results": true, "show": true, "shows": true,
	"some": true, "such": true, "than": true, "that": true, "the": true,
	"their": true, "these": true, "this": true, "those": true, "through": true,
	"to": true, "two": true, "under": true, "use": true, "used": true,
	"using": true, "we": true, "well": true, "when": true,
	"where": true, "which": true, "while": true, "with": true, "work": true,
}

// Vectorizer computes TF-IDF scores over a fixed corpus vocabulary. It is
// fitted once per trend run on the full summary corpus so that label scores
// are comparable across clusters.
type Vectorizer struct {
	vocabulary []string
	docFreq    map[string]int
	docCount   int
}

// FitVectorizer builds the vocabulary and document frequencies from the
// corpus. The vocabulary is capped to the most frequent terms.
func FitVectorizer(documents []string) *Vectorizer {
	docFreq := make(map[string]int)
	totalFreq := make(map[string]int)
	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, term := range tokenize(doc) {
			totalFreq[term]++
			if !seen[term] {
				docFreq[term]++
				seen[term] = true
			}
		}
	}

	terms := make([]string, 0, len(totalFreq))
	for term := range totalFreq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if totalFreq[terms[i]] != totalFreq[terms[j]] {
			return totalFreq[terms[i]] > totalFreq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxVocabulary {
		terms = terms[:maxVocabulary]
	}

	return &Vectorizer{
		vocabulary: terms,
		docFreq:    docFreq,
		docCount:   len(documents),
	}
}

// TopTerms returns the up-to-n highest TF-IDF terms of the document,
// restricted to the fitted vocabulary.
func (v *Vectorizer) TopTerms(document string, n int) []string {
	if v.docCount == 0 {
		return nil
	}

	termFreq := make(map[string]int)
	total := 0
	for _, term := range tokenize(document) {
		termFreq[term]++
		total++
	}
	if total == 0 {
		return nil
	}

	type scored struct {
		term  string
		score float64
	}
	var scores []scored
	for _, term := range v.vocabulary {
		freq, ok := termFreq[term]
		if !ok {
			continue
		}
		tf := float64(freq) / float64(total)
		idf := math.Log(float64(1+v.docCount)/float64(1+v.docFreq[term])) + 1
		scores = append(scores, scored{term: term, score: tf * idf})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].term < scores[j].term
	})

	if n > len(scores) {
		n = len(scores)
	}
	terms := make([]string, n)
	for i := 0; i < n; i++ {
		terms[i] = scores[i].term
	}
	return terms
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	terms := make([]string, 0, len(raw))
	for _, term := range raw {
		if len(term) < 3 || stopwords[term] {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}
