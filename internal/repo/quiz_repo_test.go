package repo

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

func newMockQuizRepo(t *testing.T) (*QuizRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewQuizRepo(db), mock
}

func quizRow(id string, completedAt int64) []driver.Value {
	return []driver.Value{
		id, "u1", "d1", "Cells - Quiz", "Quiz generated from Cells",
		[]byte(`[{"question":"q","options":["a","b","c","d"],"correct_answer":"b","explanation":"e","difficulty":"easy"}]`),
		[]byte(`[]`), int64(0), int64(1), completedAt, int64(1), int64(1),
	}
}

func TestQuizRepoGetByIDDecodesQuestions(t *testing.T) {
	r, mock := newMockQuizRepo(t)
	mock.ExpectQuery("SELECT .* FROM quizzes").
		WillReturnRows(sqlmock.NewRows(quizColumns).AddRow(quizRow("q1", 0)...))

	quiz, err := r.GetByID(context.Background(), "u1", "q1")
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 1)
	require.Equal(t, []string{"a", "b", "c", "d"}, quiz.Questions[0].Options)
	require.Empty(t, quiz.Answers)
	require.False(t, quiz.IsCompleted())

	mock.ExpectQuery("SELECT .* FROM quizzes").WillReturnRows(sqlmock.NewRows(quizColumns))
	_, err = r.GetByID(context.Background(), "u1", "q2")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepoSubmitOnlyOnce(t *testing.T) {
	r, mock := newMockQuizRepo(t)
	answers := []model.QuizAnswer{{QuestionIndex: 0, SelectedAnswer: "b", IsCorrect: true}}

	mock.ExpectExec("UPDATE quizzes SET").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.Submit(context.Background(), "u1", "q1", answers, 100, 9))

	mock.ExpectExec("UPDATE quizzes SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM quizzes").
		WillReturnRows(sqlmock.NewRows(quizColumns).AddRow(quizRow("q1", 9)...))
	err := r.Submit(context.Background(), "u1", "q1", answers, 100, 10)
	require.ErrorIs(t, err, ErrQuizCompleted)
	require.ErrorIs(t, err, appErr.ErrConflict)

	mock.ExpectExec("UPDATE quizzes SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM quizzes").WillReturnRows(sqlmock.NewRows(quizColumns))
	err = r.Submit(context.Background(), "u1", "missing", answers, 100, 10)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
