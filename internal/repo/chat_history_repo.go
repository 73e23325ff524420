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

const appendChatSQL = `INSERT INTO chat_histories (id, user_id, document_id, messages, ctime, mtime)
VALUES (?, ?, ?, ?::jsonb, ?, ?)
ON CONFLICT (user_id, document_id)
DO UPDATE SET messages = chat_histories.messages || EXCLUDED.messages, mtime = EXCLUDED.mtime`

type ChatHistoryRepo struct {
	db *sql.DB
}

func NewChatHistoryRepo(db *sql.DB) *ChatHistoryRepo {
	return &ChatHistoryRepo{db: db}
}

func (r *ChatHistoryRepo) Get(ctx context.Context, userID, docID string) (*model.ChatHistory, error) {
	where := map[string]interface{}{"user_id": userID, "document_id": docID}
	sqlStr, args, err := builder.BuildSelect("chat_histories", where,
		[]string{"id", "user_id", "document_id", "messages", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	var (
		history model.ChatHistory
		blob    []byte
	)
	if err := rows.Scan(&history.ID, &history.UserID, &history.DocumentID, &blob, &history.Ctime, &history.Mtime); err != nil {
		return nil, err
	}
	history.Messages = []model.ChatMessage{}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &history.Messages); err != nil {
			return nil, fmt.Errorf("decode chat messages: %w", err)
		}
	}
	return &history, nil
}

// Append adds messages to the history of a document, creating the history
// row on first use. newID is only used when the row does not exist yet.
func (r *ChatHistoryRepo) Append(ctx context.Context, newID, userID, docID string, msgs []model.ChatMessage, now int64) error {
	if len(msgs) == 0 {
		return nil
	}
	blob, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode chat messages: %w", err)
	}
	sqlStr, args := dbutil.Finalize(appendChatSQL, []interface{}{newID, userID, docID, string(blob), now, now})
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChatHistoryRepo) DeleteByDocument(ctx context.Context, userID, docID string) error {
	where := map[string]interface{}{"user_id": userID, "document_id": docID}
	sqlStr, args, err := builder.BuildDelete("chat_histories", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
