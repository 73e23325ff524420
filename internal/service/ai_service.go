package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/timeutil"
	"github.com/xxxsen/studymate/internal/retrieval"
)

const (
	contextChunks  = 3
	maxSearchLimit = 20
)

// Assistant produces the generated text for the AI endpoints.
type Assistant interface {
	ChatWithContext(ctx context.Context, question string, chunks []model.ScoredChunk) (string, error)
	ExplainConcept(ctx context.Context, concept, context string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

type ReadyDocuments interface {
	ReadyDocument(ctx context.Context, userID, docID string) (*model.Document, error)
}

type AIService struct {
	docs      ReadyDocuments
	chats     ChatStore
	assistant Assistant
	summaries *expirable.LRU[string, string]
}

func NewAIService(docs ReadyDocuments, chats ChatStore, assistant Assistant, cacheSize int, cacheTTL time.Duration) *AIService {
	return &AIService{
		docs:      docs,
		chats:     chats,
		assistant: assistant,
		summaries: expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
	}
}

type ChatResult struct {
	DocumentID     string `json:"document_id"`
	Title          string `json:"title"`
	Answer         string `json:"answer"`
	RelevantChunks []int  `json:"relevant_chunks"`
}

type ExplainResult struct {
	DocumentID     string `json:"document_id"`
	Title          string `json:"title"`
	Concept        string `json:"concept"`
	Explanation    string `json:"explanation"`
	RelevantChunks []int  `json:"relevant_chunks"`
}

type SummaryResult struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
}

func (s *AIService) Chat(ctx context.Context, userID, docID, question string) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", appErr.ErrInvalid)
	}
	doc, err := s.chunkedDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	relevant := retrieval.FindRelevantChunks(doc.Chunks, question, contextChunks)
	answer, err := s.assistant.ChatWithContext(ctx, question, relevant)
	if err != nil {
		logutil.GetLogger(ctx).Error("chat generation failed", zap.String("doc_id", docID), zap.Error(err))
		return nil, err
	}
	indices := chunkIndices(relevant)
	now := timeutil.NowUnix()
	msgs := []model.ChatMessage{
		{Role: model.ChatRoleUser, Content: question, RelevantChunks: []int{}, Timestamp: now},
		{Role: model.ChatRoleAssistant, Content: answer, RelevantChunks: indices, Timestamp: now},
	}
	if err := s.chats.Append(ctx, newID(), userID, docID, msgs, now); err != nil {
		logutil.GetLogger(ctx).Warn("save chat history failed", zap.String("doc_id", docID), zap.Error(err))
	}
	return &ChatResult{DocumentID: doc.ID, Title: doc.Title, Answer: answer, RelevantChunks: indices}, nil
}

func (s *AIService) ExplainConcept(ctx context.Context, userID, docID, concept string) (*ExplainResult, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return nil, fmt.Errorf("%w: concept is required", appErr.ErrInvalid)
	}
	doc, err := s.chunkedDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	relevant := retrieval.FindRelevantChunks(doc.Chunks, concept, contextChunks)
	parts := make([]string, 0, len(relevant))
	for _, c := range relevant {
		parts = append(parts, c.Content)
	}
	explanation, err := s.assistant.ExplainConcept(ctx, concept, strings.Join(parts, "\n\n"))
	if err != nil {
		return nil, err
	}
	return &ExplainResult{
		DocumentID:     doc.ID,
		Title:          doc.Title,
		Concept:        concept,
		Explanation:    explanation,
		RelevantChunks: chunkIndices(relevant),
	}, nil
}

// Summarize returns a summary of the document text. Summaries are cached by
// the hash of the text, so a re-uploaded copy of a file hits the cache too.
func (s *AIService) Summarize(ctx context.Context, userID, docID string) (*SummaryResult, error) {
	doc, err := s.docs.ReadyDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(doc.RawText)
	if text == "" {
		return nil, fmt.Errorf("%w: document has no text", appErr.ErrNotReady)
	}
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])
	if cached, ok := s.summaries.Get(key); ok {
		return &SummaryResult{DocumentID: doc.ID, Title: doc.Title, Summary: cached}, nil
	}
	summary, err := s.assistant.Summarize(ctx, text)
	if err != nil {
		return nil, err
	}
	s.summaries.Add(key, summary)
	return &SummaryResult{DocumentID: doc.ID, Title: doc.Title, Summary: summary}, nil
}

func (s *AIService) ChatHistory(ctx context.Context, userID, docID string) ([]model.ChatMessage, error) {
	if _, err := s.docs.ReadyDocument(ctx, userID, docID); err != nil {
		return nil, err
	}
	history, err := s.chats.Get(ctx, userID, docID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return []model.ChatMessage{}, nil
		}
		return nil, err
	}
	return history.Messages, nil
}

// Search returns the scored chunks for a query without calling the model.
func (s *AIService) Search(ctx context.Context, userID, docID, query string, limit int) ([]model.ScoredChunk, error) {
	if limit <= 0 {
		limit = contextChunks
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	doc, err := s.docs.ReadyDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	return retrieval.FindRelevantChunks(doc.Chunks, query, limit), nil
}

func (s *AIService) chunkedDocument(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := s.docs.ReadyDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if len(doc.Chunks) == 0 {
		return nil, fmt.Errorf("%w: document has no chunks", appErr.ErrNotReady)
	}
	return doc, nil
}

func chunkIndices(chunks []model.ScoredChunk) []int {
	out := make([]int, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.ChunkIndex)
	}
	return out
}
