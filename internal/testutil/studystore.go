package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/repo"
)

// Flashcards is an in-memory flashcard store.
type Flashcards struct {
	mu    sync.Mutex
	cards map[string]*model.Flashcard
}

func NewFlashcards() *Flashcards {
	return &Flashcards{cards: map[string]*model.Flashcard{}}
}

func (m *Flashcards) CreateBatch(_ context.Context, cards []model.Flashcard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cards {
		if _, ok := m.cards[c.ID]; ok {
			return appErr.ErrConflict
		}
	}
	for i := range cards {
		cp := cards[i]
		m.cards[cp.ID] = &cp
	}
	return nil
}

func (m *Flashcards) ListByUser(_ context.Context, userID string) ([]model.Flashcard, error) {
	return m.filter(func(c *model.Flashcard) bool { return c.UserID == userID }), nil
}

func (m *Flashcards) ListByDocument(_ context.Context, userID, docID string) ([]model.Flashcard, error) {
	return m.filter(func(c *model.Flashcard) bool { return c.UserID == userID && c.DocumentID == docID }), nil
}

func (m *Flashcards) filter(keep func(*model.Flashcard) bool) []model.Flashcard {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Flashcard, 0)
	for _, c := range m.cards {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ctime != out[j].Ctime {
			return out[i].Ctime > out[j].Ctime
		}
		if out[i].SetID != out[j].SetID {
			return out[i].SetID < out[j].SetID
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func (m *Flashcards) owned(userID, cardID string) (*model.Flashcard, error) {
	c, ok := m.cards[cardID]
	if !ok || c.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return c, nil
}

func (m *Flashcards) Review(_ context.Context, userID, cardID string, now int64) (*model.Flashcard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.owned(userID, cardID)
	if err != nil {
		return nil, err
	}
	c.ReviewCount++
	c.LastReviewed = now
	c.Mtime = now
	cp := *c
	return &cp, nil
}

func (m *Flashcards) ToggleStar(_ context.Context, userID, cardID string, now int64) (*model.Flashcard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.owned(userID, cardID)
	if err != nil {
		return nil, err
	}
	c.IsStarred = !c.IsStarred
	c.Mtime = now
	cp := *c
	return &cp, nil
}

func (m *Flashcards) Delete(_ context.Context, userID, cardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.owned(userID, cardID); err != nil {
		return err
	}
	delete(m.cards, cardID)
	return nil
}

func (m *Flashcards) DeleteByDocument(_ context.Context, userID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.cards {
		if c.UserID == userID && c.DocumentID == docID {
			delete(m.cards, id)
		}
	}
	return nil
}

// Quizzes is an in-memory quiz store. Submit follows the postgres repo and
// only succeeds once per quiz.
type Quizzes struct {
	mu      sync.Mutex
	quizzes map[string]*model.Quiz
}

func NewQuizzes() *Quizzes {
	return &Quizzes{quizzes: map[string]*model.Quiz{}}
}

func copyQuiz(q *model.Quiz) *model.Quiz {
	cp := *q
	cp.Questions = make([]model.QuizQuestion, len(q.Questions))
	for i, qq := range q.Questions {
		qq.Options = append([]string(nil), qq.Options...)
		cp.Questions[i] = qq
	}
	cp.Answers = append([]model.QuizAnswer{}, q.Answers...)
	return &cp
}

func (m *Quizzes) Create(_ context.Context, quiz *model.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[quiz.ID]; ok {
		return appErr.ErrConflict
	}
	cp := copyQuiz(quiz)
	cp.TotalQuestions = len(cp.Questions)
	m.quizzes[quiz.ID] = cp
	return nil
}

func (m *Quizzes) owned(userID, quizID string) (*model.Quiz, error) {
	q, ok := m.quizzes[quizID]
	if !ok || q.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return q, nil
}

func (m *Quizzes) GetByID(_ context.Context, userID, quizID string) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.owned(userID, quizID)
	if err != nil {
		return nil, err
	}
	return copyQuiz(q), nil
}

func (m *Quizzes) ListByDocument(_ context.Context, userID, docID string) ([]model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Quiz, 0)
	for _, q := range m.quizzes {
		if q.UserID == userID && q.DocumentID == docID {
			out = append(out, *copyQuiz(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ctime != out[j].Ctime {
			return out[i].Ctime > out[j].Ctime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Quizzes) Submit(_ context.Context, userID, quizID string, answers []model.QuizAnswer, score int, completedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.owned(userID, quizID)
	if err != nil {
		return err
	}
	if q.IsCompleted() {
		return repo.ErrQuizCompleted
	}
	q.Answers = append([]model.QuizAnswer{}, answers...)
	q.Score = score
	q.CompletedAt = completedAt
	q.Mtime = completedAt
	return nil
}

func (m *Quizzes) Delete(_ context.Context, userID, quizID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.owned(userID, quizID); err != nil {
		return err
	}
	delete(m.quizzes, quizID)
	return nil
}

func (m *Quizzes) DeleteByDocument(_ context.Context, userID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, q := range m.quizzes {
		if q.UserID == userID && q.DocumentID == docID {
			delete(m.quizzes, id)
		}
	}
	return nil
}
