package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/errcode"
)

func TestFlashcardLifecycle(t *testing.T) {
	env := setupRouter(t)
	_, token := env.register(t, "student1", "student@example.com")
	doc := uploadReady(t, env, token)

	res := env.doJSON(t, http.MethodPost, "/api/v1/ai/generate-flashcards", token, map[string]interface{}{})
	require.Equal(t, errcode.ErrInvalid, res.Code)

	res = env.doJSON(t, http.MethodPost, "/api/v1/ai/generate-flashcards", token, map[string]interface{}{
		"document_id": doc.ID, "count": 5,
	})
	require.Zero(t, res.Code, res.Msg)
	var generated struct {
		Flashcards []model.Flashcard `json:"flashcards"`
		Count      int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &generated))
	require.Equal(t, 2, generated.Count)
	require.Equal(t, "Mitosis", generated.Flashcards[1].Answer)
	cardID := generated.Flashcards[0].ID

	res = env.doJSON(t, http.MethodPut, "/api/v1/flashcards/"+cardID+"/review", token, nil)
	require.Zero(t, res.Code, res.Msg)
	var card model.Flashcard
	require.NoError(t, json.Unmarshal(res.Data, &card))
	require.Equal(t, 1, card.ReviewCount)

	res = env.doJSON(t, http.MethodPut, "/api/v1/flashcards/"+cardID+"/star", token, nil)
	require.Zero(t, res.Code, res.Msg)
	require.NoError(t, json.Unmarshal(res.Data, &card))
	require.True(t, card.IsStarred)

	_, other := env.register(t, "student2", "other@example.com")
	res = env.doJSON(t, http.MethodPut, "/api/v1/flashcards/"+cardID+"/star", other, nil)
	require.Equal(t, errcode.ErrNotFound, res.Code)

	res = env.doJSON(t, http.MethodGet, "/api/v1/documents/"+doc.ID+"/flashcards", token, nil)
	require.Zero(t, res.Code)
	var cards []model.Flashcard
	require.NoError(t, json.Unmarshal(res.Data, &cards))
	require.Len(t, cards, 2)

	res = env.doJSON(t, http.MethodDelete, "/api/v1/flashcards/"+cardID, token, nil)
	require.Zero(t, res.Code)
	res = env.doJSON(t, http.MethodGet, "/api/v1/flashcards", token, nil)
	require.Zero(t, res.Code)
	require.NoError(t, json.Unmarshal(res.Data, &cards))
	require.Len(t, cards, 1)
}

func TestQuizHidesAnswersUntilSubmitted(t *testing.T) {
	env := setupRouter(t)
	_, token := env.register(t, "student1", "student@example.com")
	doc := uploadReady(t, env, token)

	res := env.doJSON(t, http.MethodPost, "/api/v1/ai/generate-quiz", token, map[string]interface{}{
		"document_id": doc.ID, "num_questions": 2,
	})
	require.Zero(t, res.Code, res.Msg)
	require.NotContains(t, string(res.Data), "correct_answer")
	require.NotContains(t, string(res.Data), "Plants capture light.")
	var quiz struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Questions []struct {
			Options []string `json:"options"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &quiz))
	require.Equal(t, "Biology notes - Quiz", quiz.Title)
	require.Len(t, quiz.Questions, 2)
	require.Len(t, quiz.Questions[0].Options, 4)

	res = env.doJSON(t, http.MethodGet, "/api/v1/quizzes/"+quiz.ID+"/results", token, nil)
	require.Equal(t, errcode.ErrInvalid, res.Code)

	res = env.doJSON(t, http.MethodPost, "/api/v1/quizzes/"+quiz.ID+"/submit", token, map[string]interface{}{
		"answers": []map[string]interface{}{},
	})
	require.Equal(t, errcode.ErrInvalid, res.Code)

	res = env.doJSON(t, http.MethodPost, "/api/v1/quizzes/"+quiz.ID+"/submit", token, map[string]interface{}{
		"answers": []map[string]interface{}{
			{"question_index": 0, "selected_answer": "Light"},
			{"question_index": 1, "selected_answer": "Roots"},
		},
	})
	require.Zero(t, res.Code, res.Msg)
	var result struct {
		Score        int `json:"score"`
		CorrectCount int `json:"correct_count"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &result))
	require.Equal(t, 50, result.Score)
	require.Equal(t, 1, result.CorrectCount)

	res = env.doJSON(t, http.MethodPost, "/api/v1/quizzes/"+quiz.ID+"/submit", token, map[string]interface{}{
		"answers": []map[string]interface{}{{"question_index": 1, "selected_answer": "Cells"}},
	})
	require.Equal(t, errcode.ErrConflict, res.Code)

	res = env.doJSON(t, http.MethodGet, "/api/v1/quizzes/"+quiz.ID, token, nil)
	require.Zero(t, res.Code)
	require.Contains(t, string(res.Data), "Plants capture light.")

	res = env.doJSON(t, http.MethodGet, "/api/v1/documents/"+doc.ID+"/quizzes", token, nil)
	require.Zero(t, res.Code)
	var quizzes []json.RawMessage
	require.NoError(t, json.Unmarshal(res.Data, &quizzes))
	require.Len(t, quizzes, 1)

	res = env.doJSON(t, http.MethodDelete, "/api/v1/documents/"+doc.ID, token, nil)
	require.Zero(t, res.Code)
	res = env.doJSON(t, http.MethodGet, "/api/v1/quizzes/"+quiz.ID, token, nil)
	require.Equal(t, errcode.ErrNotFound, res.Code)
}
