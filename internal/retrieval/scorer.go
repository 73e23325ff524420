package retrieval

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/xxxsen/studymate/internal/model"
)

const DefaultMaxChunks = 3

const (
	exactMatchWeight   = 3.0
	partialMatchWeight = 1.5
	coverageWeight     = 2.0
	positionPenalty    = 0.1
)

var stopwords = map[string]struct{}{
	"the": {}, "is": {}, "which": {}, "and": {}, "to": {},
	"a": {}, "of": {}, "that": {}, "it": {}, "on": {},
	"for": {}, "as": {}, "with": {}, "was": {}, "at": {},
	"by": {}, "an": {}, "or": {}, "but": {}, "in": {},
}

// Keywords lower-cases the query, splits it on whitespace and drops
// stopwords and repeats. Order of first appearance is kept.
func Keywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	keywords := make([]string, 0, len(fields))
	for _, word := range fields {
		if _, ok := stopwords[word]; ok {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

type keywordMatcher struct {
	word  string
	exact *regexp.Regexp
}

// FindRelevantChunks ranks chunks by keyword overlap with query and returns
// at most maxChunks of them. A blank query, or one made only of stopwords,
// returns the first maxChunks chunks unscored. The input slice is never
// modified.
func FindRelevantChunks(chunks []model.Chunk, query string, maxChunks int) []model.ScoredChunk {
	if maxChunks <= 0 {
		return []model.ScoredChunk{}
	}
	keywords := Keywords(query)
	if len(chunks) == 0 || len(keywords) == 0 {
		return firstN(chunks, maxChunks)
	}

	matchers := make([]keywordMatcher, 0, len(keywords))
	for _, kw := range keywords {
		matchers = append(matchers, keywordMatcher{
			word:  kw,
			exact: regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
		})
	}

	total := float64(len(chunks))
	scored := make([]model.ScoredChunk, 0, len(chunks))
	for position, chunk := range chunks {
		raw, matched, distinctWords := scoreContent(strings.ToLower(chunk.Content), matchers)
		if distinctWords == 0 {
			continue
		}
		normalized := raw / math.Sqrt(float64(distinctWords))
		final := normalized * (1 - positionPenalty*float64(position)/total)
		if final <= 0 {
			continue
		}
		scored = append(scored, model.ScoredChunk{
			Chunk:           chunk,
			Score:           final,
			RawScore:        raw,
			MatchedKeywords: matched,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.MatchedKeywords != b.MatchedKeywords {
			return a.MatchedKeywords > b.MatchedKeywords
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	if len(scored) > maxChunks {
		scored = scored[:maxChunks]
	}
	return scored
}

// scoreContent returns the weighted match score of content, the number of
// keywords present as whole tokens and the number of distinct tokens.
func scoreContent(content string, matchers []keywordMatcher) (float64, int, int) {
	tokens := strings.Fields(content)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		tokenSet[token] = struct{}{}
	}

	var raw float64
	matched := 0
	for _, m := range matchers {
		exact := len(m.exact.FindAllStringIndex(content, -1))
		raw += float64(exact) * exactMatchWeight
		if partial := strings.Count(content, m.word) - exact; partial > 0 {
			raw += float64(partial) * partialMatchWeight
		}
		if _, ok := tokenSet[m.word]; ok {
			matched++
		}
	}
	if matched > 1 {
		raw += float64(matched) * coverageWeight
	}
	return raw, matched, len(tokenSet)
}

func firstN(chunks []model.Chunk, n int) []model.ScoredChunk {
	if n > len(chunks) {
		n = len(chunks)
	}
	out := make([]model.ScoredChunk, 0, n)
	for _, chunk := range chunks[:n] {
		out = append(out, model.ScoredChunk{Chunk: chunk})
	}
	return out
}
