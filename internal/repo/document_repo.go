package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

// ErrStatusConflict is returned when an ingestion result is written for a
// document that is no longer processing.
var ErrStatusConflict = fmt.Errorf("document status conflict: %w", appErr.ErrConflict)

var (
	documentMetaColumns = []string{
		"id", "user_id", "title", "file_name", "file_key", "file_url", "content_type",
		"file_size", "page_count", "status", "fail_reason", "chunk_count", "last_accessed", "ctime", "mtime",
	}
	documentDetailColumns = append(append([]string{}, documentMetaColumns...), "raw_text", "chunks")
)

type IngestionResult struct {
	Chunks    []model.Chunk
	RawText   string
	PageCount int
	Mtime     int64
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":            doc.ID,
		"user_id":       doc.UserID,
		"title":         doc.Title,
		"file_name":     doc.FileName,
		"file_key":      doc.FileKey,
		"file_url":      doc.FileURL,
		"content_type":  doc.ContentType,
		"file_size":     doc.FileSize,
		"status":        doc.Status,
		"last_accessed": doc.LastAccessed,
		"ctime":         doc.Ctime,
		"mtime":         doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
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

// GetByID returns the document with its raw text and chunks.
func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	return r.getOne(ctx, map[string]interface{}{"id": docID, "user_id": userID}, true)
}

// GetMeta returns the document without raw text and chunks.
func (r *DocumentRepo) GetMeta(ctx context.Context, userID, docID string) (*model.Document, error) {
	return r.getOne(ctx, map[string]interface{}{"id": docID, "user_id": userID}, false)
}

func (r *DocumentRepo) getOne(ctx context.Context, where map[string]interface{}, detail bool) (*model.Document, error) {
	columns := documentMetaColumns
	if detail {
		columns = documentDetailColumns
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, columns)
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
	return scanDocument(rows, detail)
}

func (r *DocumentRepo) List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentMetaColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows, false)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) UpdateTitle(ctx context.Context, userID, docID, title string, mtime int64) error {
	where := map[string]interface{}{"id": docID, "user_id": userID}
	update := map[string]interface{}{"title": title, "mtime": mtime}
	return r.updateOne(ctx, where, update)
}

func (r *DocumentRepo) Touch(ctx context.Context, userID, docID string, accessed int64) error {
	where := map[string]interface{}{"id": docID, "user_id": userID}
	update := map[string]interface{}{"last_accessed": accessed}
	return r.updateOne(ctx, where, update)
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	where := map[string]interface{}{"id": docID, "user_id": userID}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// LoadChunks returns the ordered chunk list of a document.
func (r *DocumentRepo) LoadChunks(ctx context.Context, docID string) ([]model.Chunk, error) {
	sqlStr, args, err := builder.BuildSelect("documents", map[string]interface{}{"id": docID}, []string{"chunks"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var blob []byte
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return decodeChunks(blob)
}

// CompleteIngestion stores the chunks, raw text and page count and flips the
// status to ready in one transaction. It fails with ErrStatusConflict unless
// the document is still processing.
func (r *DocumentRepo) CompleteIngestion(ctx context.Context, docID string, res IngestionResult) error {
	blob, err := encodeChunks(res.Chunks)
	if err != nil {
		return err
	}
	update := map[string]interface{}{
		"chunks":      blob,
		"chunk_count": len(res.Chunks),
		"raw_text":    res.RawText,
		"page_count":  res.PageCount,
		"status":      model.DocumentStatusReady,
		"fail_reason": "",
		"mtime":       res.Mtime,
	}
	return r.transition(ctx, docID, update)
}

// FailIngestion moves a processing document to failed and clears its chunks.
func (r *DocumentRepo) FailIngestion(ctx context.Context, docID, reason string, mtime int64) error {
	update := map[string]interface{}{
		"chunks":      "[]",
		"chunk_count": 0,
		"status":      model.DocumentStatusFailed,
		"fail_reason": reason,
		"mtime":       mtime,
	}
	return r.transition(ctx, docID, update)
}

func (r *DocumentRepo) transition(ctx context.Context, docID string, update map[string]interface{}) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockSQL, lockArgs := dbutil.Finalize("SELECT status FROM documents WHERE id = ? FOR UPDATE", []interface{}{docID})
	var status string
	if err = tx.QueryRowContext(ctx, lockSQL, lockArgs...).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErr.ErrNotFound
		}
		return err
	}
	if status != model.DocumentStatusProcessing {
		err = ErrStatusConflict
		return err
	}

	where := map[string]interface{}{
		"id":     docID,
		"status": model.DocumentStatusProcessing,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err = tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// ListStaleProcessing lists documents that have been processing since before
// the given unix time.
func (r *DocumentRepo) ListStaleProcessing(ctx context.Context, before int64, limit uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"status":   model.DocumentStatusProcessing,
		"ctime <":  before,
		"_orderby": "ctime asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentMetaColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows, false)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) updateOne(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(rows rowScanner, detail bool) (*model.Document, error) {
	var doc model.Document
	dest := []interface{}{
		&doc.ID, &doc.UserID, &doc.Title, &doc.FileName, &doc.FileKey, &doc.FileURL, &doc.ContentType,
		&doc.FileSize, &doc.PageCount, &doc.Status, &doc.FailReason, &doc.ChunkCount, &doc.LastAccessed, &doc.Ctime, &doc.Mtime,
	}
	var blob []byte
	if detail {
		dest = append(dest, &doc.RawText, &blob)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	if detail {
		chunks, err := decodeChunks(blob)
		if err != nil {
			return nil, err
		}
		doc.Chunks = chunks
	}
	return &doc, nil
}

// encodeChunks returns the JSON text of chunks. It is passed as a string so
// the driver does not send it as bytea.
func encodeChunks(chunks []model.Chunk) (string, error) {
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	blob, err := json.Marshal(chunks)
	if err != nil {
		return "", fmt.Errorf("encode chunks: %w", err)
	}
	return string(blob), nil
}

func decodeChunks(blob []byte) ([]model.Chunk, error) {
	if len(blob) == 0 {
		return []model.Chunk{}, nil
	}
	var chunks []model.Chunk
	if err := json.Unmarshal(blob, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	return chunks, nil
}
