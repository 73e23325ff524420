package service

import (
	"context"

	"github.com/xxxsen/studymate/internal/ingest"
	"github.com/xxxsen/studymate/internal/model"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, hash string, mtime int64) error
	UpdateProfile(ctx context.Context, userID, username, email string, mtime int64) error
}

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, userID, docID string) (*model.Document, error)
	GetMeta(ctx context.Context, userID, docID string) (*model.Document, error)
	List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error)
	UpdateTitle(ctx context.Context, userID, docID, title string, mtime int64) error
	Touch(ctx context.Context, userID, docID string, accessed int64) error
	Delete(ctx context.Context, userID, docID string) error
	FailIngestion(ctx context.Context, docID, reason string, mtime int64) error
}

type ChatStore interface {
	Get(ctx context.Context, userID, docID string) (*model.ChatHistory, error)
	Append(ctx context.Context, id, userID, docID string, msgs []model.ChatMessage, now int64) error
	DeleteByDocument(ctx context.Context, userID, docID string) error
}

// Submitter accepts documents for background ingestion.
type Submitter interface {
	Submit(ctx context.Context, task ingest.Task) error
}

type FlashcardStore interface {
	CreateBatch(ctx context.Context, cards []model.Flashcard) error
	ListByUser(ctx context.Context, userID string) ([]model.Flashcard, error)
	ListByDocument(ctx context.Context, userID, docID string) ([]model.Flashcard, error)
	Review(ctx context.Context, userID, cardID string, now int64) (*model.Flashcard, error)
	ToggleStar(ctx context.Context, userID, cardID string, now int64) (*model.Flashcard, error)
	Delete(ctx context.Context, userID, cardID string) error
}

type QuizStore interface {
	Create(ctx context.Context, quiz *model.Quiz) error
	GetByID(ctx context.Context, userID, quizID string) (*model.Quiz, error)
	ListByDocument(ctx context.Context, userID, docID string) ([]model.Quiz, error)
	Submit(ctx context.Context, userID, quizID string, answers []model.QuizAnswer, score int, completedAt int64) error
	Delete(ctx context.Context, userID, quizID string) error
}

// DocumentCleaner drops data derived from a document when it is deleted.
type DocumentCleaner interface {
	DeleteByDocument(ctx context.Context, userID, docID string) error
}
