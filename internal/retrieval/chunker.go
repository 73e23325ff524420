package retrieval

import (
	"regexp"
	"strings"

	"github.com/xxxsen/studymate/internal/model"
)

const (
	DefaultTargetSize = 500
	DefaultOverlap    = 50
)

var (
	lineBreakReplacer = strings.NewReplacer(
		"\r\n", "\n",
		"\r", "\n",
		"\v", "\n",
		"\f", "\n",
		"\u2028", "\n",
		"\u2029", "\n",
	)
	horizontalSpaceRe = regexp.MustCompile(`[\t\p{Zs}]+`)
	spaceAroundLineRe = regexp.MustCompile(` ?\n ?`)
)

// Normalize collapses line-break variants to "\n" and runs of horizontal
// whitespace to a single space, then trims both ends. Paragraph boundaries
// survive. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = lineBreakReplacer.Replace(text)
	text = horizontalSpaceRe.ReplaceAllString(text, " ")
	text = spaceAroundLineRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Chunk splits text into ordered, paragraph-aware chunks of about targetSize
// words. Consecutive chunks share up to overlap words. Blank text yields no
// chunks.
func Chunk(text string, targetSize, overlap int) []model.Chunk {
	targetSize, overlap = clampSizes(targetSize, overlap)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cleaned := Normalize(text)

	var (
		chunks    []model.Chunk
		buffer    []string
		bufWords  int
		emitChunk = func(content string) {
			chunks = append(chunks, model.Chunk{
				Content:    content,
				ChunkIndex: len(chunks),
				PageNumber: 0,
			})
		}
	)

	for _, paragraph := range strings.Split(cleaned, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		words := strings.Fields(paragraph)

		if len(words) > targetSize {
			if len(buffer) > 0 {
				emitChunk(strings.Join(buffer, "\n\n"))
				buffer, bufWords = nil, 0
			}
			for _, window := range slideWindows(words, targetSize, overlap) {
				emitChunk(window)
			}
			continue
		}

		if bufWords+len(words) > targetSize && len(buffer) > 0 {
			emitChunk(strings.Join(buffer, "\n\n"))
			tail := trailingWords(strings.Fields(strings.Join(buffer, " ")), overlap)
			buffer, bufWords = nil, 0
			if len(tail) > 0 {
				buffer = append(buffer, strings.Join(tail, " "))
				bufWords = len(tail)
			}
			buffer = append(buffer, paragraph)
			bufWords += len(words)
			continue
		}

		buffer = append(buffer, paragraph)
		bufWords += len(words)
	}

	if len(buffer) > 0 {
		emitChunk(strings.Join(buffer, "\n\n"))
	}

	if len(chunks) == 0 && cleaned != "" {
		for _, window := range slideWindows(strings.Fields(cleaned), targetSize, overlap) {
			emitChunk(window)
		}
	}
	return chunks
}

// slideWindows cuts words into windows of size words, advancing by
// size-overlap. The last window may be shorter than size.
func slideWindows(words []string, size, overlap int) []string {
	step := size - overlap
	var windows []string
	for i := 0; i < len(words); i += step {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[i:end], " "))
		if i+size >= len(words) {
			break
		}
	}
	return windows
}

func trailingWords(words []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(words) {
		n = len(words)
	}
	return words[len(words)-n:]
}

func clampSizes(targetSize, overlap int) (int, int) {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize - 1
	}
	return targetSize, overlap
}
