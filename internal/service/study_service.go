package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/timeutil"
)

const (
	defaultGenerateCount = 10
	maxGenerateCount     = 30
	maxQuizDescLen       = 1000
)

// StudyGenerator turns document text into study material drafts.
type StudyGenerator interface {
	GenerateFlashcards(ctx context.Context, text string, count int) ([]ai.FlashcardDraft, error)
	GenerateQuiz(ctx context.Context, text string, count int) ([]ai.QuestionDraft, error)
}

type StudyService struct {
	docs       ReadyDocuments
	flashcards FlashcardStore
	quizzes    QuizStore
	gen        StudyGenerator
}

func NewStudyService(docs ReadyDocuments, flashcards FlashcardStore, quizzes QuizStore, gen StudyGenerator) *StudyService {
	return &StudyService{docs: docs, flashcards: flashcards, quizzes: quizzes, gen: gen}
}

type QuizInput struct {
	DocumentID   string
	NumQuestions int
	Title        string
	Description  string
}

type AnswerInput struct {
	QuestionIndex  int
	SelectedAnswer string
}

type QuestionResult struct {
	Index          int      `json:"index"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	CorrectAnswer  string   `json:"correct_answer"`
	SelectedAnswer string   `json:"selected_answer"`
	IsCorrect      bool     `json:"is_correct"`
	Explanation    string   `json:"explanation"`
}

type QuizResult struct {
	QuizID         string           `json:"quiz_id"`
	Title          string           `json:"title"`
	Score          int              `json:"score"`
	CorrectCount   int              `json:"correct_count"`
	TotalQuestions int              `json:"total_questions"`
	CompletedAt    int64            `json:"completed_at"`
	Questions      []QuestionResult `json:"questions"`
}

func (s *StudyService) GenerateFlashcards(ctx context.Context, userID, docID string, count int) ([]model.Flashcard, error) {
	doc, err := s.textDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	drafts, err := s.gen.GenerateFlashcards(ctx, doc.RawText, clampCount(count))
	if err != nil {
		logutil.GetLogger(ctx).Error("flashcard generation failed", zap.String("doc_id", docID), zap.Error(err))
		return nil, err
	}
	now := timeutil.NowUnix()
	setID := newID()
	cards := make([]model.Flashcard, 0, len(drafts))
	for i, d := range drafts {
		cards = append(cards, model.Flashcard{
			ID:         newID(),
			UserID:     userID,
			DocumentID: doc.ID,
			SetID:      setID,
			Question:   d.Question,
			Answer:     d.Answer,
			Difficulty: model.NormalizeDifficulty(d.Difficulty),
			Position:   i,
			Ctime:      now,
			Mtime:      now,
		})
	}
	if err := s.flashcards.CreateBatch(ctx, cards); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("flashcards generated",
		zap.String("doc_id", doc.ID), zap.String("set_id", setID), zap.Int("count", len(cards)))
	return cards, nil
}

func (s *StudyService) ListFlashcards(ctx context.Context, userID string) ([]model.Flashcard, error) {
	return s.flashcards.ListByUser(ctx, userID)
}

func (s *StudyService) DocumentFlashcards(ctx context.Context, userID, docID string) ([]model.Flashcard, error) {
	return s.flashcards.ListByDocument(ctx, userID, docID)
}

func (s *StudyService) ReviewFlashcard(ctx context.Context, userID, cardID string) (*model.Flashcard, error) {
	return s.flashcards.Review(ctx, userID, cardID, timeutil.NowUnix())
}

func (s *StudyService) ToggleStar(ctx context.Context, userID, cardID string) (*model.Flashcard, error) {
	return s.flashcards.ToggleStar(ctx, userID, cardID, timeutil.NowUnix())
}

func (s *StudyService) DeleteFlashcard(ctx context.Context, userID, cardID string) error {
	return s.flashcards.Delete(ctx, userID, cardID)
}

func (s *StudyService) GenerateQuiz(ctx context.Context, userID string, in QuizInput) (*model.Quiz, error) {
	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title must be at most %d characters", appErr.ErrInvalid, maxTitleLen)
	}
	desc := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(desc) > maxQuizDescLen {
		return nil, fmt.Errorf("%w: description must be at most %d characters", appErr.ErrInvalid, maxQuizDescLen)
	}
	doc, err := s.textDocument(ctx, userID, in.DocumentID)
	if err != nil {
		return nil, err
	}
	drafts, err := s.gen.GenerateQuiz(ctx, doc.RawText, clampCount(in.NumQuestions))
	if err != nil {
		logutil.GetLogger(ctx).Error("quiz generation failed", zap.String("doc_id", doc.ID), zap.Error(err))
		return nil, err
	}
	if title == "" {
		title = doc.Title + " - Quiz"
	}
	if desc == "" {
		desc = "Quiz generated from " + doc.Title
	}
	now := timeutil.NowUnix()
	quiz := &model.Quiz{
		ID:          newID(),
		UserID:      userID,
		DocumentID:  doc.ID,
		Title:       title,
		Description: desc,
		Questions:   make([]model.QuizQuestion, 0, len(drafts)),
		Answers:     []model.QuizAnswer{},
		Ctime:       now,
		Mtime:       now,
	}
	for _, d := range drafts {
		quiz.Questions = append(quiz.Questions, model.QuizQuestion{
			Question:      d.Question,
			Options:       d.Options,
			CorrectAnswer: d.CorrectAnswer,
			Explanation:   d.Explanation,
			Difficulty:    model.NormalizeDifficulty(d.Difficulty),
		})
	}
	quiz.TotalQuestions = len(quiz.Questions)
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("quiz generated",
		zap.String("doc_id", doc.ID), zap.String("quiz_id", quiz.ID), zap.Int("questions", quiz.TotalQuestions))
	return quiz, nil
}

func (s *StudyService) DocumentQuizzes(ctx context.Context, userID, docID string) ([]model.Quiz, error) {
	return s.quizzes.ListByDocument(ctx, userID, docID)
}

func (s *StudyService) GetQuiz(ctx context.Context, userID, quizID string) (*model.Quiz, error) {
	return s.quizzes.GetByID(ctx, userID, quizID)
}

// SubmitQuiz grades the answers and completes the quiz. Answers pointing
// outside the question list are ignored and the last answer for a question
// wins. The score is the rounded percentage of correct questions.
func (s *StudyService) SubmitQuiz(ctx context.Context, userID, quizID string, answers []AnswerInput) (*QuizResult, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: answers are required", appErr.ErrInvalid)
	}
	quiz, err := s.quizzes.GetByID(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.IsCompleted() {
		return nil, fmt.Errorf("%w: quiz already completed", appErr.ErrConflict)
	}
	graded := gradeAnswers(quiz.Questions, answers)
	correct := 0
	for _, a := range graded {
		if a.IsCorrect {
			correct++
		}
	}
	score := 0
	if n := len(quiz.Questions); n > 0 {
		score = int(math.Round(float64(correct) / float64(n) * 100))
	}
	now := timeutil.NowUnix()
	if err := s.quizzes.Submit(ctx, userID, quizID, graded, score, now); err != nil {
		if appErr.IsConflict(err) {
			return nil, fmt.Errorf("%w: quiz already completed", appErr.ErrConflict)
		}
		return nil, err
	}
	quiz.Answers = graded
	quiz.Score = score
	quiz.CompletedAt = now
	logutil.GetLogger(ctx).Info("quiz submitted", zap.String("quiz_id", quizID), zap.Int("score", score))
	return buildResult(quiz), nil
}

func (s *StudyService) QuizResults(ctx context.Context, userID, quizID string) (*QuizResult, error) {
	quiz, err := s.quizzes.GetByID(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsCompleted() {
		return nil, fmt.Errorf("%w: quiz not completed yet", appErr.ErrInvalid)
	}
	return buildResult(quiz), nil
}

func (s *StudyService) DeleteQuiz(ctx context.Context, userID, quizID string) error {
	return s.quizzes.Delete(ctx, userID, quizID)
}

func (s *StudyService) textDocument(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := s.docs.ReadyDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.RawText) == "" {
		return nil, fmt.Errorf("%w: document has no text", appErr.ErrNotReady)
	}
	return doc, nil
}

func clampCount(n int) int {
	if n <= 0 {
		return defaultGenerateCount
	}
	if n > maxGenerateCount {
		return maxGenerateCount
	}
	return n
}

func gradeAnswers(questions []model.QuizQuestion, answers []AnswerInput) []model.QuizAnswer {
	byIndex := make(map[int]model.QuizAnswer, len(answers))
	for _, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(questions) {
			continue
		}
		selected := strings.TrimSpace(a.SelectedAnswer)
		byIndex[a.QuestionIndex] = model.QuizAnswer{
			QuestionIndex:  a.QuestionIndex,
			SelectedAnswer: selected,
			IsCorrect:      selected == questions[a.QuestionIndex].CorrectAnswer,
		}
	}
	out := make([]model.QuizAnswer, 0, len(byIndex))
	for _, a := range byIndex {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionIndex < out[j].QuestionIndex })
	return out
}

func buildResult(quiz *model.Quiz) *QuizResult {
	answered := make(map[int]model.QuizAnswer, len(quiz.Answers))
	for _, a := range quiz.Answers {
		answered[a.QuestionIndex] = a
	}
	res := &QuizResult{
		QuizID:         quiz.ID,
		Title:          quiz.Title,
		Score:          quiz.Score,
		TotalQuestions: len(quiz.Questions),
		CompletedAt:    quiz.CompletedAt,
		Questions:      make([]QuestionResult, 0, len(quiz.Questions)),
	}
	for i, q := range quiz.Questions {
		a := answered[i]
		if a.IsCorrect {
			res.CorrectCount++
		}
		res.Questions = append(res.Questions, QuestionResult{
			Index:          i,
			Question:       q.Question,
			Options:        q.Options,
			CorrectAnswer:  q.CorrectAnswer,
			SelectedAnswer: a.SelectedAnswer,
			IsCorrect:      a.IsCorrect,
			Explanation:    q.Explanation,
		})
	}
	return res
}
