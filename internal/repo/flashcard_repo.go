package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

var flashcardColumns = []string{
	"id", "user_id", "document_id", "set_id", "question", "answer", "difficulty",
	"position", "review_count", "is_starred", "last_reviewed", "ctime", "mtime",
}

const flashcardOrder = "ctime desc, set_id asc, position asc"

var (
	reviewFlashcardSQL = `UPDATE flashcards SET review_count = review_count + 1, last_reviewed = ?, mtime = ?
WHERE id = ? AND user_id = ? RETURNING ` + strings.Join(flashcardColumns, ", ")
	starFlashcardSQL = `UPDATE flashcards SET is_starred = NOT is_starred, mtime = ?
WHERE id = ? AND user_id = ? RETURNING ` + strings.Join(flashcardColumns, ", ")
)

type FlashcardRepo struct {
	db *sql.DB
}

func NewFlashcardRepo(db *sql.DB) *FlashcardRepo {
	return &FlashcardRepo{db: db}
}

// CreateBatch inserts a generated set in one statement.
func (r *FlashcardRepo) CreateBatch(ctx context.Context, cards []model.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(cards))
	for _, c := range cards {
		data = append(data, map[string]interface{}{
			"id":            c.ID,
			"user_id":       c.UserID,
			"document_id":   c.DocumentID,
			"set_id":        c.SetID,
			"question":      c.Question,
			"answer":        c.Answer,
			"difficulty":    c.Difficulty,
			"position":      c.Position,
			"review_count":  c.ReviewCount,
			"is_starred":    c.IsStarred,
			"last_reviewed": c.LastReviewed,
			"ctime":         c.Ctime,
			"mtime":         c.Mtime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("flashcards", data)
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

func (r *FlashcardRepo) ListByUser(ctx context.Context, userID string) ([]model.Flashcard, error) {
	return r.list(ctx, map[string]interface{}{"user_id": userID, "_orderby": flashcardOrder})
}

func (r *FlashcardRepo) ListByDocument(ctx context.Context, userID, docID string) ([]model.Flashcard, error) {
	return r.list(ctx, map[string]interface{}{"user_id": userID, "document_id": docID, "_orderby": flashcardOrder})
}

func (r *FlashcardRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Flashcard, error) {
	sqlStr, args, err := builder.BuildSelect("flashcards", where, flashcardColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	cards := make([]model.Flashcard, 0)
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// Review bumps the review counter and returns the updated card.
func (r *FlashcardRepo) Review(ctx context.Context, userID, cardID string, now int64) (*model.Flashcard, error) {
	return r.updateReturning(ctx, reviewFlashcardSQL, now, now, cardID, userID)
}

// ToggleStar flips the starred flag and returns the updated card.
func (r *FlashcardRepo) ToggleStar(ctx context.Context, userID, cardID string, now int64) (*model.Flashcard, error) {
	return r.updateReturning(ctx, starFlashcardSQL, now, cardID, userID)
}

func (r *FlashcardRepo) updateReturning(ctx context.Context, query string, args ...interface{}) (*model.Flashcard, error) {
	sqlStr, args := dbutil.Finalize(query, args)
	card, err := scanFlashcard(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return card, nil
}

func (r *FlashcardRepo) Delete(ctx context.Context, userID, cardID string) error {
	result, err := r.delete(ctx, map[string]interface{}{"id": cardID, "user_id": userID})
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *FlashcardRepo) DeleteByDocument(ctx context.Context, userID, docID string) error {
	_, err := r.delete(ctx, map[string]interface{}{"user_id": userID, "document_id": docID})
	return err
}

func (r *FlashcardRepo) delete(ctx context.Context, where map[string]interface{}) (sql.Result, error) {
	sqlStr, args, err := builder.BuildDelete("flashcards", where)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.db.ExecContext(ctx, sqlStr, args...)
}

func scanFlashcard(row rowScanner) (*model.Flashcard, error) {
	var c model.Flashcard
	if err := row.Scan(&c.ID, &c.UserID, &c.DocumentID, &c.SetID, &c.Question, &c.Answer, &c.Difficulty,
		&c.Position, &c.ReviewCount, &c.IsStarred, &c.LastReviewed, &c.Ctime, &c.Mtime); err != nil {
		return nil, err
	}
	return &c, nil
}
