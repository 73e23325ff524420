package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/studymate/internal/model"
)

// ErrMalformedOutput is returned when the model reply holds no usable items.
var ErrMalformedOutput = errors.New("ai response could not be parsed")

const quizOptionCount = 4

type FlashcardDraft struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

type QuestionDraft struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
}

// GenerateFlashcards asks for up to count question and answer pairs.
func (m *Manager) GenerateFlashcards(ctx context.Context, text string, count int) ([]FlashcardDraft, error) {
	prompt := fmt.Sprintf(`You are a study assistant creating flashcards.
From the text below, write exactly %d flashcards.
- Each item has "question", "answer" and "difficulty" (one of easy, medium, hard).
- Keep questions specific and answers concise.
- Return a JSON array of objects only. No extra text.

TEXT:
%s`, count, m.truncate(text))
	result, err := m.generateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseFlashcards(result, count)
}

// GenerateQuiz asks for up to count multiple choice questions with four
// options each.
func (m *Manager) GenerateQuiz(ctx context.Context, text string, count int) ([]QuestionDraft, error) {
	prompt := fmt.Sprintf(`You are a study assistant writing a multiple choice quiz.
From the text below, write exactly %d questions.
- Each item has "question", "options" (exactly %d strings), "correct_answer" (copied from options), "explanation" and "difficulty" (one of easy, medium, hard).
- Return a JSON array of objects only. No extra text.

TEXT:
%s`, count, quizOptionCount, m.truncate(text))
	result, err := m.generateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseQuestions(result, count)
}

func parseFlashcards(output string, limit int) ([]FlashcardDraft, error) {
	var raw []FlashcardDraft
	if err := decodeJSONArray(output, &raw); err != nil {
		return nil, err
	}
	cards := make([]FlashcardDraft, 0, len(raw))
	for _, c := range raw {
		c.Question = strings.TrimSpace(c.Question)
		c.Answer = strings.TrimSpace(c.Answer)
		if c.Question == "" || c.Answer == "" {
			continue
		}
		c.Difficulty = model.NormalizeDifficulty(strings.ToLower(strings.TrimSpace(c.Difficulty)))
		cards = append(cards, c)
		if limit > 0 && len(cards) == limit {
			break
		}
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: no flashcards", ErrMalformedOutput)
	}
	return cards, nil
}

func parseQuestions(output string, limit int) ([]QuestionDraft, error) {
	var raw []QuestionDraft
	if err := decodeJSONArray(output, &raw); err != nil {
		return nil, err
	}
	questions := make([]QuestionDraft, 0, len(raw))
	for _, q := range raw {
		q.Question = strings.TrimSpace(q.Question)
		q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
		if q.Question == "" || len(q.Options) != quizOptionCount {
			continue
		}
		found := false
		for i, opt := range q.Options {
			q.Options[i] = strings.TrimSpace(opt)
			if q.Options[i] == "" {
				found = false
				break
			}
			if q.Options[i] == q.CorrectAnswer {
				found = true
			}
		}
		if !found {
			continue
		}
		q.Explanation = strings.TrimSpace(q.Explanation)
		q.Difficulty = model.NormalizeDifficulty(strings.ToLower(strings.TrimSpace(q.Difficulty)))
		questions = append(questions, q)
		if limit > 0 && len(questions) == limit {
			break
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no valid questions", ErrMalformedOutput)
	}
	return questions, nil
}

// decodeJSONArray tolerates code fences and prose around the array.
func decodeJSONArray(output string, dst interface{}) error {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no json array", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(clean[start:end+1]), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}
