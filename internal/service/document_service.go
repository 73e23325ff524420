package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/filestore"
	"github.com/xxxsen/studymate/internal/ingest"
	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/timeutil"
)

const maxTitleLen = 200

// FileTypes reports whether a file name can be ingested.
type FileTypes interface {
	Supported(name string) bool
}

type DocumentService struct {
	docs     DocumentStore
	chats    ChatStore
	files    filestore.Store
	ingest   Submitter
	types    FileTypes
	maxBytes int64
	cleaners []DocumentCleaner
}

func NewDocumentService(docs DocumentStore, chats ChatStore, files filestore.Store, submitter Submitter, types FileTypes, maxBytes int64) *DocumentService {
	return &DocumentService{docs: docs, chats: chats, files: files, ingest: submitter, types: types, maxBytes: maxBytes}
}

// AddCleaners registers stores whose rows are dropped with a document.
func (s *DocumentService) AddCleaners(cleaners ...DocumentCleaner) {
	s.cleaners = append(s.cleaners, cleaners...)
}

type UploadInput struct {
	Title       string
	FileName    string
	ContentType string
	Size        int64
	Reader      io.ReadSeeker
}

// Upload stores the file, creates the document as processing and queues it
// for ingestion. A document that could not be queued is returned already
// failed.
func (s *DocumentService) Upload(ctx context.Context, userID string, in UploadInput) (*model.Document, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(in.FileName))
	if ext == "" || !s.types.Supported(in.FileName) {
		return nil, appErr.ErrUnsupported
	}
	if in.Size <= 0 || in.Reader == nil {
		return nil, fmt.Errorf("%w: empty file", appErr.ErrInvalid)
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, appErr.ErrTooLarge
	}

	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	docID := newID()
	key := docID + ext
	if err := s.files.Save(ctx, key, in.Reader, in.Size); err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}
	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:           docID,
		UserID:       userID,
		Title:        title,
		FileName:     filepath.Base(in.FileName),
		FileKey:      key,
		FileURL:      s.files.URL(key, ""),
		ContentType:  in.ContentType,
		FileSize:     in.Size,
		Status:       model.DocumentStatusProcessing,
		LastAccessed: now,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			logger.Warn("remove orphaned upload failed", zap.String("file_key", key), zap.Error(delErr))
		}
		return nil, err
	}
	if err := s.ingest.Submit(ctx, ingest.Task{DocumentID: doc.ID, FileKey: key}); err != nil {
		logger.Error("submit ingestion failed", zap.String("doc_id", doc.ID), zap.Error(err))
		reason := "ingestion queue unavailable: " + err.Error()
		mtime := timeutil.NowUnix()
		if failErr := s.docs.FailIngestion(ctx, doc.ID, reason, mtime); failErr != nil {
			logger.Error("mark document failed", zap.String("doc_id", doc.ID), zap.Error(failErr))
			return nil, failErr
		}
		doc.Status = model.DocumentStatusFailed
		doc.FailReason = reason
		doc.Mtime = mtime
		return doc, nil
	}
	logger.Info("document uploaded", zap.String("doc_id", doc.ID), zap.Int64("size", in.Size))
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	return s.docs.List(ctx, userID, limit, offset)
}

// Get returns the document metadata and records the access time.
func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := s.docs.GetMeta(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	if err := s.docs.Touch(ctx, userID, docID, now); err != nil {
		logutil.GetLogger(ctx).Warn("touch document failed", zap.String("doc_id", docID), zap.Error(err))
	} else {
		doc.LastAccessed = now
	}
	return doc, nil
}

func (s *DocumentService) Status(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.GetMeta(ctx, userID, docID)
}

func (s *DocumentService) UpdateTitle(ctx context.Context, userID, docID, title string) (*model.Document, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}
	if err := s.docs.UpdateTitle(ctx, userID, docID, title, timeutil.NowUnix()); err != nil {
		return nil, err
	}
	return s.docs.GetMeta(ctx, userID, docID)
}

// Delete removes the document record, its chat history and the stored file.
// Only the record removal can fail the call.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.docs.GetMeta(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, userID, docID); err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	if err := s.chats.DeleteByDocument(ctx, userID, docID); err != nil {
		logger.Warn("delete chat history failed", zap.Error(err))
	}
	for _, c := range s.cleaners {
		if err := c.DeleteByDocument(ctx, userID, docID); err != nil {
			logger.Warn("delete document data failed", zap.Error(err))
		}
	}
	if err := s.files.Delete(ctx, doc.FileKey); err != nil {
		logger.Warn("delete stored file failed", zap.String("file_key", doc.FileKey), zap.Error(err))
	}
	logger.Info("document deleted")
	return nil
}

// ReadyDocument loads a document with its chunks, failing with ErrNotReady
// unless ingestion finished successfully.
func (s *DocumentService) ReadyDocument(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocumentStatusReady {
		return nil, fmt.Errorf("%w: status is %s", appErr.ErrNotReady, doc.Status)
	}
	return doc, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", appErr.ErrInvalid)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", fmt.Errorf("%w: title is too long", appErr.ErrInvalid)
	}
	return title, nil
}
