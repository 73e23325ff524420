package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

// ErrQuizCompleted is returned when answers are submitted twice.
var ErrQuizCompleted = fmt.Errorf("quiz already completed: %w", appErr.ErrConflict)

var quizColumns = []string{
	"id", "user_id", "document_id", "title", "description", "questions", "answers",
	"score", "total_questions", "completed_at", "ctime", "mtime",
}

type QuizRepo struct {
	db *sql.DB
}

func NewQuizRepo(db *sql.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

func (r *QuizRepo) Create(ctx context.Context, quiz *model.Quiz) error {
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("encode quiz questions: %w", err)
	}
	data := map[string]interface{}{
		"id":              quiz.ID,
		"user_id":         quiz.UserID,
		"document_id":     quiz.DocumentID,
		"title":           quiz.Title,
		"description":     quiz.Description,
		"questions":       string(questions),
		"answers":         "[]",
		"score":           0,
		"total_questions": len(quiz.Questions),
		"completed_at":    0,
		"ctime":           quiz.Ctime,
		"mtime":           quiz.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("quizzes", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *QuizRepo) GetByID(ctx context.Context, userID, quizID string) (*model.Quiz, error) {
	quizzes, err := r.list(ctx, map[string]interface{}{"id": quizID, "user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(quizzes) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &quizzes[0], nil
}

func (r *QuizRepo) ListByDocument(ctx context.Context, userID, docID string) ([]model.Quiz, error) {
	return r.list(ctx, map[string]interface{}{"user_id": userID, "document_id": docID, "_orderby": "ctime desc"})
}

func (r *QuizRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Quiz, error) {
	sqlStr, args, err := builder.BuildSelect("quizzes", where, quizColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	quizzes := make([]model.Quiz, 0)
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *quiz)
	}
	return quizzes, rows.Err()
}

// Submit records the graded answers once. A quiz that is already completed
// gives ErrQuizCompleted.
func (r *QuizRepo) Submit(ctx context.Context, userID, quizID string, answers []model.QuizAnswer, score int, completedAt int64) error {
	blob, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode quiz answers: %w", err)
	}
	where := map[string]interface{}{"id": quizID, "user_id": userID, "completed_at": 0}
	update := map[string]interface{}{
		"answers":      string(blob),
		"score":        score,
		"completed_at": completedAt,
		"mtime":        completedAt,
	}
	sqlStr, args, err := builder.BuildUpdate("quizzes", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if err := requireAffected(result); err != nil {
		if _, getErr := r.GetByID(ctx, userID, quizID); getErr != nil {
			return getErr
		}
		return ErrQuizCompleted
	}
	return nil
}

func (r *QuizRepo) Delete(ctx context.Context, userID, quizID string) error {
	result, err := r.delete(ctx, map[string]interface{}{"id": quizID, "user_id": userID})
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *QuizRepo) DeleteByDocument(ctx context.Context, userID, docID string) error {
	_, err := r.delete(ctx, map[string]interface{}{"user_id": userID, "document_id": docID})
	return err
}

func (r *QuizRepo) delete(ctx context.Context, where map[string]interface{}) (sql.Result, error) {
	sqlStr, args, err := builder.BuildDelete("quizzes", where)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.db.ExecContext(ctx, sqlStr, args...)
}

func scanQuiz(row rowScanner) (*model.Quiz, error) {
	var (
		q                      model.Quiz
		questions, answersBlob []byte
	)
	if err := row.Scan(&q.ID, &q.UserID, &q.DocumentID, &q.Title, &q.Description, &questions, &answersBlob,
		&q.Score, &q.TotalQuestions, &q.CompletedAt, &q.Ctime, &q.Mtime); err != nil {
		return nil, err
	}
	q.Questions = []model.QuizQuestion{}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &q.Questions); err != nil {
			return nil, fmt.Errorf("decode quiz questions: %w", err)
		}
	}
	q.Answers = []model.QuizAnswer{}
	if len(answersBlob) > 0 {
		if err := json.Unmarshal(answersBlob, &q.Answers); err != nil {
			return nil, fmt.Errorf("decode quiz answers: %w", err)
		}
	}
	return &q, nil
}
