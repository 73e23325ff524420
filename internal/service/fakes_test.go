package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/config"
	"github.com/xxxsen/studymate/internal/filestore"
	"github.com/xxxsen/studymate/internal/ingest"
	"github.com/xxxsen/studymate/internal/model"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	tasks []ingest.Task
	err   error
}

func (r *recordingSubmitter) Submit(_ context.Context, task ingest.Task) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

type extTypes map[string]bool

func (e extTypes) Supported(name string) bool {
	return e[strings.ToLower(filepath.Ext(name))]
}

func newLocalStore(t *testing.T) (filestore.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	return store, dir
}

type fakeAssistant struct {
	mu         sync.Mutex
	answer     string
	err        error
	questions  []string
	contexts   []string
	chunks     [][]model.ScoredChunk
	summarized int
}

func (f *fakeAssistant) ChatWithContext(_ context.Context, question string, chunks []model.ScoredChunk) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	f.chunks = append(f.chunks, chunks)
	return f.answer, f.err
}

func (f *fakeAssistant) ExplainConcept(_ context.Context, concept, context string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, concept)
	f.contexts = append(f.contexts, context)
	return f.answer, f.err
}

func (f *fakeAssistant) Summarize(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summarized++
	f.contexts = append(f.contexts, text)
	return f.answer, f.err
}

type fakeStudyGen struct {
	cards     []ai.FlashcardDraft
	questions []ai.QuestionDraft
	err       error
	counts    []int
}

func (f *fakeStudyGen) GenerateFlashcards(_ context.Context, _ string, count int) ([]ai.FlashcardDraft, error) {
	f.counts = append(f.counts, count)
	return f.cards, f.err
}

func (f *fakeStudyGen) GenerateQuiz(_ context.Context, _ string, count int) ([]ai.QuestionDraft, error) {
	f.counts = append(f.counts, count)
	return f.questions, f.err
}
