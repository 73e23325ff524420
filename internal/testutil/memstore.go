package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/repo"
)

// Users is an in-memory user store with unique emails and usernames.
type Users struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func NewUsers() *Users {
	return &Users{users: map[string]*model.User{}}
}

func (m *Users) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return appErr.ErrConflict
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *Users) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Users) UpdatePassword(_ context.Context, userID, hash string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	u.PasswordHash = hash
	u.Mtime = mtime
	return nil
}

func (m *Users) UpdateProfile(_ context.Context, userID, username, email string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	for id, other := range m.users {
		if id != userID && (other.Email == email || other.Username == username) {
			return appErr.ErrConflict
		}
	}
	u.Username = username
	u.Email = email
	u.Mtime = mtime
	return nil
}

// Documents is an in-memory document store. Ingestion writes follow the
// same processing-only rule as the postgres repo.
type Documents struct {
	mu        sync.Mutex
	docs      map[string]*model.Document
	CreateErr error
}

func NewDocuments() *Documents {
	return &Documents{docs: map[string]*model.Document{}}
}

func (m *Documents) Put(doc model.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = &doc
}

func (m *Documents) Snapshot(id string) (model.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return model.Document{}, false
	}
	return *d, true
}

func (m *Documents) owned(userID, docID string) (*model.Document, error) {
	d, ok := m.docs[docID]
	if !ok || d.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return d, nil
}

func (m *Documents) Create(_ context.Context, doc *model.Document) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return appErr.ErrConflict
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *Documents) GetByID(_ context.Context, userID, docID string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.owned(userID, docID)
	if err != nil {
		return nil, err
	}
	cp := *d
	cp.Chunks = append([]model.Chunk(nil), d.Chunks...)
	return &cp, nil
}

func (m *Documents) GetMeta(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := m.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	doc.RawText = ""
	doc.Chunks = nil
	return doc, nil
}

func (m *Documents) List(_ context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Document, 0)
	for _, d := range m.docs {
		if d.UserID == userID {
			cp := *d
			cp.RawText = ""
			cp.Chunks = nil
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ctime != out[j].Ctime {
			return out[i].Ctime > out[j].Ctime
		}
		return out[i].ID < out[j].ID
	})
	if offset >= uint(len(out)) {
		return []model.Document{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < uint(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Documents) UpdateTitle(_ context.Context, userID, docID, title string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.owned(userID, docID)
	if err != nil {
		return err
	}
	d.Title = title
	d.Mtime = mtime
	return nil
}

func (m *Documents) Touch(_ context.Context, userID, docID string, accessed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.owned(userID, docID)
	if err != nil {
		return err
	}
	d.LastAccessed = accessed
	return nil
}

func (m *Documents) Delete(_ context.Context, userID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.owned(userID, docID); err != nil {
		return err
	}
	delete(m.docs, docID)
	return nil
}

func (m *Documents) processing(docID string) (*model.Document, error) {
	d, ok := m.docs[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	if d.Status != model.DocumentStatusProcessing {
		return nil, repo.ErrStatusConflict
	}
	return d, nil
}

func (m *Documents) CompleteIngestion(_ context.Context, docID string, res repo.IngestionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.processing(docID)
	if err != nil {
		return err
	}
	d.Chunks = append([]model.Chunk{}, res.Chunks...)
	d.ChunkCount = len(res.Chunks)
	d.RawText = res.RawText
	d.PageCount = res.PageCount
	d.Status = model.DocumentStatusReady
	d.FailReason = ""
	d.Mtime = res.Mtime
	return nil
}

func (m *Documents) FailIngestion(_ context.Context, docID, reason string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.processing(docID)
	if err != nil {
		return err
	}
	d.Status = model.DocumentStatusFailed
	d.FailReason = reason
	d.Chunks = []model.Chunk{}
	d.ChunkCount = 0
	d.Mtime = mtime
	return nil
}

func (m *Documents) ListStaleProcessing(_ context.Context, before int64, limit uint) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Document, 0)
	for _, d := range m.docs {
		if d.Status == model.DocumentStatusProcessing && d.Ctime < before {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ctime < out[j].Ctime })
	if limit > 0 && uint(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Chats is an in-memory chat history store keyed by user and document.
type Chats struct {
	mu        sync.Mutex
	histories map[string][]model.ChatMessage
	AppendErr error
}

func NewChats() *Chats {
	return &Chats{histories: map[string][]model.ChatMessage{}}
}

func (m *Chats) Get(_ context.Context, userID, docID string) (*model.ChatHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.histories[userID+"/"+docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &model.ChatHistory{UserID: userID, DocumentID: docID, Messages: append([]model.ChatMessage(nil), msgs...)}, nil
}

func (m *Chats) Append(_ context.Context, _, userID, docID string, msgs []model.ChatMessage, _ int64) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if len(msgs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "/" + docID
	m.histories[key] = append(m.histories[key], msgs...)
	return nil
}

func (m *Chats) DeleteByDocument(_ context.Context, userID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.histories, userID+"/"+docID)
	return nil
}
