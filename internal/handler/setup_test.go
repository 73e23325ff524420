package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/config"
	"github.com/xxxsen/studymate/internal/extract"
	"github.com/xxxsen/studymate/internal/filestore"
	"github.com/xxxsen/studymate/internal/handler"
	"github.com/xxxsen/studymate/internal/ingest"
	"github.com/xxxsen/studymate/internal/middleware"
	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/service"
	"github.com/xxxsen/studymate/internal/testutil"
)

const testUploadLimit = 1 << 20

const (
	cannedFlashcards = `[{"question":"What do plants make?","answer":"Chemical energy","difficulty":"easy"},
{"question":"How do cells divide?","answer":"Mitosis","difficulty":"hard"}]`
	cannedQuiz = "```json\n" + `[{"question":"What powers photosynthesis?","options":["Light","Sound","Heat","Wind"],"correct_answer":"Light","explanation":"Plants capture light.","difficulty":"easy"},
{"question":"What splits during mitosis?","options":["Roots","Cells","Leaves","Seeds"],"correct_answer":"Cells","explanation":"Cells divide.","difficulty":"medium"}]` + "\n```"
)

// cannedGenerator answers generation prompts with fixed JSON and anything
// else with reply.
type cannedGenerator struct {
	reply string
}

func (g cannedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "creating flashcards"):
		return cannedFlashcards, nil
	case strings.Contains(prompt, "multiple choice quiz"):
		return cannedQuiz, nil
	}
	return g.reply, nil
}

type testEnv struct {
	router http.Handler
	docs   *testutil.Documents
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"message"`
	Data json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := testutil.NewUsers()
	docs := testutil.NewDocuments()
	chats := testutil.NewChats()
	flashcards := testutil.NewFlashcards()
	quizzes := testutil.NewQuizzes()
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)

	mux := extract.NewMux("")
	orch := ingest.New(ingest.Config{TargetSize: 20, Overlap: 5, Workers: 1, QueueSize: 8}, mux, store, docs)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	jwtSecret := []byte("test-secret")
	authService := service.NewAuthService(users, jwtSecret, time.Hour)
	documentService := service.NewDocumentService(docs, chats, store, orch, mux, testUploadLimit)
	manager := ai.NewManager(cannedGenerator{reply: "Plants turn light into chemical energy."}, ai.ManagerConfig{})
	aiService := service.NewAIService(documentService, chats, manager, 16, time.Minute)
	documentService.AddCleaners(flashcards, quizzes)
	studyService := service.NewStudyService(documentService, flashcards, quizzes, manager)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Documents: handler.NewDocumentHandler(documentService, testUploadLimit),
		AI:        handler.NewAIHandler(aiService),
		Study:     handler.NewStudyHandler(studyService),
		Files:     handler.NewFileHandler(store),
		JWTSecret: jwtSecret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testEnv{router: engine, docs: docs}
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return decodeEnvelope(t, e.serve(req))
}

func (e *testEnv) upload(t *testing.T, token, title, name string, content []byte) envelope {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, w.WriteField("title", title))
	}
	if name != "" {
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return decodeEnvelope(t, e.serve(req))
}

// register creates a user and returns its id and token.
func (e *testEnv) register(t *testing.T, username, email string) (string, string) {
	t.Helper()
	res := e.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "secret1",
	})
	require.Zero(t, res.Code, res.Msg)
	var data struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.User.ID, data.Token
}

func (e *testEnv) waitTerminal(t *testing.T, docID string) model.Document {
	t.Helper()
	var doc model.Document
	require.Eventually(t, func() bool {
		var ok bool
		doc, ok = e.docs.Snapshot(docID)
		return ok && doc.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return doc
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}
