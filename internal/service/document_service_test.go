package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/ingest"
	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/testutil"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

type docFixture struct {
	svc   *DocumentService
	docs  *testutil.Documents
	chats *testutil.Chats
	sub   *recordingSubmitter
	dir   string
}

func newDocFixture(t *testing.T) *docFixture {
	t.Helper()
	store, dir := newLocalStore(t)
	f := &docFixture{docs: testutil.NewDocuments(), chats: testutil.NewChats(), sub: &recordingSubmitter{}, dir: dir}
	f.svc = NewDocumentService(f.docs, f.chats, store, f.sub, extTypes{".pdf": true, ".txt": true, ".md": true}, 1024)
	return f
}

func textUpload(title, name, body string) UploadInput {
	return UploadInput{
		Title:       title,
		FileName:    name,
		ContentType: "text/plain",
		Size:        int64(len(body)),
		Reader:      strings.NewReader(body),
	}
}

func TestUploadCreatesProcessingDocument(t *testing.T) {
	f := newDocFixture(t)
	doc, err := f.svc.Upload(context.Background(), "u1", textUpload("  Notes  ", "notes.TXT", "hello world"))
	require.NoError(t, err)
	require.Equal(t, "Notes", doc.Title)
	require.Equal(t, model.DocumentStatusProcessing, doc.Status)
	require.Equal(t, doc.ID+".txt", doc.FileKey)
	require.Equal(t, "/api/v1/files/"+doc.FileKey, doc.FileURL)

	stored, err := os.ReadFile(filepath.Join(f.dir, doc.FileKey))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(stored))
	require.Equal(t, []ingest.Task{{DocumentID: doc.ID, FileKey: doc.FileKey}}, f.sub.tasks)
}

func TestUploadRejections(t *testing.T) {
	f := newDocFixture(t)
	tests := []struct {
		name string
		in   UploadInput
		want error
	}{
		{name: "blank title", in: textUpload("  ", "a.txt", "x"), want: appErr.ErrInvalid},
		{name: "unsupported type", in: textUpload("A", "a.docx", "x"), want: appErr.ErrUnsupported},
		{name: "no extension", in: textUpload("A", "README", "x"), want: appErr.ErrUnsupported},
		{name: "empty file", in: textUpload("A", "a.txt", ""), want: appErr.ErrInvalid},
		{name: "too large", in: textUpload("A", "a.txt", strings.Repeat("x", 1025)), want: appErr.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(context.Background(), "u1", tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
	require.Empty(t, f.sub.tasks)
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUploadRemovesFileWhenCreateFails(t *testing.T) {
	f := newDocFixture(t)
	f.docs.CreateErr = errors.New("db down")
	_, err := f.svc.Upload(context.Background(), "u1", textUpload("A", "a.txt", "body"))
	require.Error(t, err)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Empty(t, f.sub.tasks)
}

func TestUploadMarksFailedWhenQueueRejects(t *testing.T) {
	f := newDocFixture(t)
	f.sub.err = ingest.ErrQueueFull
	doc, err := f.svc.Upload(context.Background(), "u1", textUpload("A", "a.txt", "body"))
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusFailed, doc.Status)
	require.Contains(t, doc.FailReason, "queue is full")

	stored, ok := f.docs.Snapshot(doc.ID)
	require.True(t, ok)
	require.Equal(t, model.DocumentStatusFailed, stored.Status)
}

func TestGetTouchesDocument(t *testing.T) {
	f := newDocFixture(t)
	f.docs.Put(model.Document{ID: "d1", UserID: "u1", Title: "A", Status: model.DocumentStatusReady, RawText: "text",
		Chunks: []model.Chunk{{Content: "text"}}})

	doc, err := f.svc.Get(context.Background(), "u1", "d1")
	require.NoError(t, err)
	require.Empty(t, doc.RawText)
	require.Nil(t, doc.Chunks)
	require.NotZero(t, doc.LastAccessed)

	stored, _ := f.docs.Snapshot("d1")
	require.Equal(t, doc.LastAccessed, stored.LastAccessed)

	_, err = f.svc.Get(context.Background(), "u2", "d1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUpdateTitle(t *testing.T) {
	f := newDocFixture(t)
	f.docs.Put(model.Document{ID: "d1", UserID: "u1", Title: "Old", Status: model.DocumentStatusReady})

	doc, err := f.svc.UpdateTitle(context.Background(), "u1", "d1", " New ")
	require.NoError(t, err)
	require.Equal(t, "New", doc.Title)

	_, err = f.svc.UpdateTitle(context.Background(), "u1", "d1", "")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = f.svc.UpdateTitle(context.Background(), "u1", "missing", "x")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDeleteRemovesRecordHistoryAndFile(t *testing.T) {
	f := newDocFixture(t)
	doc, err := f.svc.Upload(context.Background(), "u1", textUpload("A", "a.txt", "body"))
	require.NoError(t, err)
	require.NoError(t, f.chats.Append(context.Background(), "h1", "u1", doc.ID,
		[]model.ChatMessage{{Role: model.ChatRoleUser, Content: "hi"}}, 1))

	require.NoError(t, f.svc.Delete(context.Background(), "u1", doc.ID))
	_, ok := f.docs.Snapshot(doc.ID)
	require.False(t, ok)
	_, err = f.chats.Get(context.Background(), "u1", doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = os.Stat(filepath.Join(f.dir, doc.FileKey))
	require.True(t, os.IsNotExist(err))

	require.ErrorIs(t, f.svc.Delete(context.Background(), "u1", doc.ID), appErr.ErrNotFound)
}

func TestDeleteToleratesMissingFile(t *testing.T) {
	f := newDocFixture(t)
	f.docs.Put(model.Document{ID: "d1", UserID: "u1", FileKey: "gone.txt", Status: model.DocumentStatusFailed})
	require.NoError(t, f.svc.Delete(context.Background(), "u1", "d1"))
}

func TestReadyDocument(t *testing.T) {
	f := newDocFixture(t)
	f.docs.Put(model.Document{ID: "p", UserID: "u1", Status: model.DocumentStatusProcessing})
	f.docs.Put(model.Document{ID: "f", UserID: "u1", Status: model.DocumentStatusFailed})
	f.docs.Put(model.Document{ID: "r", UserID: "u1", Status: model.DocumentStatusReady, Chunks: []model.Chunk{{Content: "x"}}})

	for _, id := range []string{"p", "f"} {
		_, err := f.svc.ReadyDocument(context.Background(), "u1", id)
		require.ErrorIs(t, err, appErr.ErrNotReady, id)
	}
	doc, err := f.svc.ReadyDocument(context.Background(), "u1", "r")
	require.NoError(t, err)
	require.Len(t, doc.Chunks, 1)
}

func TestListIsScopedToUser(t *testing.T) {
	f := newDocFixture(t)
	f.docs.Put(model.Document{ID: "a", UserID: "u1", Ctime: 1})
	f.docs.Put(model.Document{ID: "b", UserID: "u1", Ctime: 2})
	f.docs.Put(model.Document{ID: "c", UserID: "u2", Ctime: 3})

	docs, err := f.svc.List(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "b", docs[0].ID)
}
