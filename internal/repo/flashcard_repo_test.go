package repo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

func newMockFlashcardRepo(t *testing.T) (*FlashcardRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewFlashcardRepo(db), mock
}

func TestFlashcardRepoCreateBatchSingleInsert(t *testing.T) {
	r, mock := newMockFlashcardRepo(t)
	mock.ExpectExec("INSERT INTO flashcards").WillReturnResult(sqlmock.NewResult(0, 2))

	err := r.CreateBatch(context.Background(), []model.Flashcard{
		{ID: "c1", UserID: "u1", DocumentID: "d1", SetID: "s1", Question: "q1", Answer: "a1", Difficulty: "easy"},
		{ID: "c2", UserID: "u1", DocumentID: "d1", SetID: "s1", Question: "q2", Answer: "a2", Difficulty: "hard", Position: 1},
	})
	require.NoError(t, err)
	require.NoError(t, r.CreateBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlashcardRepoListByDocumentOrdersBySet(t *testing.T) {
	r, mock := newMockFlashcardRepo(t)
	mock.ExpectQuery("SELECT .* FROM flashcards WHERE .* ORDER BY ctime desc, set_id asc, position asc").
		WillReturnRows(sqlmock.NewRows(flashcardColumns).
			AddRow("c1", "u1", "d1", "s1", "q1", "a1", "easy", 0, 0, false, int64(0), int64(5), int64(5)).
			AddRow("c2", "u1", "d1", "s1", "q2", "a2", "hard", 1, 3, true, int64(9), int64(5), int64(9)))

	cards, err := r.ListByDocument(context.Background(), "u1", "d1")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	require.Equal(t, 3, cards[1].ReviewCount)
	require.True(t, cards[1].IsStarred)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlashcardRepoReviewReturnsUpdatedCard(t *testing.T) {
	r, mock := newMockFlashcardRepo(t)
	mock.ExpectQuery(`UPDATE flashcards SET review_count = review_count \+ 1`).
		WithArgs(int64(7), int64(7), "c1", "u1").
		WillReturnRows(sqlmock.NewRows(flashcardColumns).
			AddRow("c1", "u1", "d1", "s1", "q1", "a1", "easy", 0, 1, false, int64(7), int64(5), int64(7)))

	card, err := r.Review(context.Background(), "u1", "c1", 7)
	require.NoError(t, err)
	require.Equal(t, 1, card.ReviewCount)
	require.Equal(t, int64(7), card.LastReviewed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlashcardRepoToggleStarMissingCard(t *testing.T) {
	r, mock := newMockFlashcardRepo(t)
	mock.ExpectQuery("UPDATE flashcards SET is_starred = NOT is_starred").
		WillReturnRows(sqlmock.NewRows(flashcardColumns))

	_, err := r.ToggleStar(context.Background(), "u1", "nope", 7)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlashcardRepoDelete(t *testing.T) {
	r, mock := newMockFlashcardRepo(t)
	mock.ExpectExec("DELETE FROM flashcards").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM flashcards").WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, r.Delete(context.Background(), "u1", "nope"), appErr.ErrNotFound)
	require.NoError(t, r.DeleteByDocument(context.Background(), "u1", "d1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
