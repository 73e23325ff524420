package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/studymate/internal/model"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

type Manager struct {
	gen IGenerator
	cfg ManagerConfig
}

func NewManager(gen IGenerator, cfg ManagerConfig) *Manager {
	return &Manager{gen: gen, cfg: cfg}
}

// ChatWithContext answers a question using only the given chunks.
func (m *Manager) ChatWithContext(ctx context.Context, question string, chunks []model.ScoredChunk) (string, error) {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Chunk %d]\n%s", i+1, c.Content))
	}
	prompt := fmt.Sprintf(`You are a study assistant answering questions about a document.
Use only the context below. If the answer is not in the context, say that it is not covered.

CONTEXT:
%s

QUESTION: %s

ANSWER:`, m.truncate(strings.Join(parts, "\n\n")), question)
	return m.generateText(ctx, prompt)
}

func (m *Manager) ExplainConcept(ctx context.Context, concept, context string) (string, error) {
	prompt := fmt.Sprintf(`You are a patient tutor.
Explain the concept "%s" using the context below.
- Keep the explanation clear and easy to follow.
- Include an example when it helps.

CONTEXT:
%s`, concept, m.truncate(context))
	return m.generateText(ctx, prompt)
}

func (m *Manager) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`You are a study assistant.
Write a concise, structured summary of the text below.
- Highlight the key concepts, main ideas and important points.
- Output ONLY the summary.

TEXT:
%s`, m.truncate(text))
	return m.generateText(ctx, prompt)
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.gen == nil {
		return "", ErrUnavailable
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.gen.Generate(ctx, prompt)
	if err != nil {
		return "", classifyError(err)
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) truncate(s string) string {
	return truncateRunes(s, m.cfg.MaxInputChars)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
