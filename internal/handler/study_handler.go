package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/errcode"
	"github.com/xxxsen/studymate/internal/pkg/response"
	"github.com/xxxsen/studymate/internal/service"
)

type StudyHandler struct {
	study *service.StudyService
}

func NewStudyHandler(study *service.StudyService) *StudyHandler {
	return &StudyHandler{study: study}
}

type generateFlashcardsRequest struct {
	DocumentID string `json:"document_id"`
	Count      int    `json:"count"`
}

type generateQuizRequest struct {
	DocumentID   string `json:"document_id"`
	NumQuestions int    `json:"num_questions"`
	Title        string `json:"title"`
	Description  string `json:"description"`
}

type submitQuizRequest struct {
	Answers []struct {
		QuestionIndex  int    `json:"question_index"`
		SelectedAnswer string `json:"selected_answer"`
	} `json:"answers"`
}

// quizQuestionView is a question as shown while the quiz is still open.
type quizQuestionView struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	Difficulty    string   `json:"difficulty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

type quizView struct {
	ID             string             `json:"id"`
	DocumentID     string             `json:"document_id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Questions      []quizQuestionView `json:"questions"`
	Answers        []model.QuizAnswer `json:"answers"`
	Score          int                `json:"score"`
	TotalQuestions int                `json:"total_questions"`
	CompletedAt    int64              `json:"completed_at"`
	Ctime          int64              `json:"ctime"`
}

// newQuizView hides answers and explanations until the quiz is completed.
func newQuizView(q *model.Quiz) quizView {
	v := quizView{
		ID:             q.ID,
		DocumentID:     q.DocumentID,
		Title:          q.Title,
		Description:    q.Description,
		Questions:      make([]quizQuestionView, 0, len(q.Questions)),
		Answers:        q.Answers,
		Score:          q.Score,
		TotalQuestions: q.TotalQuestions,
		CompletedAt:    q.CompletedAt,
		Ctime:          q.Ctime,
	}
	for _, qq := range q.Questions {
		item := quizQuestionView{Question: qq.Question, Options: qq.Options, Difficulty: qq.Difficulty}
		if q.IsCompleted() {
			item.CorrectAnswer = qq.CorrectAnswer
			item.Explanation = qq.Explanation
		}
		v.Questions = append(v.Questions, item)
	}
	return v
}

func (h *StudyHandler) GenerateFlashcards(c *gin.Context) {
	var req generateFlashcardsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DocumentID) == "" {
		response.Error(c, errcode.ErrInvalid, "document id is required")
		return
	}
	cards, err := h.study.GenerateFlashcards(c.Request.Context(), getUserID(c), req.DocumentID, req.Count)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"flashcards": cards, "count": len(cards)})
}

func (h *StudyHandler) ListFlashcards(c *gin.Context) {
	cards, err := h.study.ListFlashcards(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cards)
}

func (h *StudyHandler) DocumentFlashcards(c *gin.Context) {
	cards, err := h.study.DocumentFlashcards(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cards)
}

func (h *StudyHandler) ReviewFlashcard(c *gin.Context) {
	card, err := h.study.ReviewFlashcard(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, card)
}

func (h *StudyHandler) StarFlashcard(c *gin.Context) {
	card, err := h.study.ToggleStar(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, card)
}

func (h *StudyHandler) DeleteFlashcard(c *gin.Context) {
	if err := h.study.DeleteFlashcard(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *StudyHandler) GenerateQuiz(c *gin.Context) {
	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DocumentID) == "" {
		response.Error(c, errcode.ErrInvalid, "document id is required")
		return
	}
	quiz, err := h.study.GenerateQuiz(c.Request.Context(), getUserID(c), service.QuizInput{
		DocumentID:   req.DocumentID,
		NumQuestions: req.NumQuestions,
		Title:        req.Title,
		Description:  req.Description,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, newQuizView(quiz))
}

func (h *StudyHandler) DocumentQuizzes(c *gin.Context) {
	quizzes, err := h.study.DocumentQuizzes(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	views := make([]quizView, 0, len(quizzes))
	for i := range quizzes {
		views = append(views, newQuizView(&quizzes[i]))
	}
	response.Success(c, views)
}

func (h *StudyHandler) GetQuiz(c *gin.Context) {
	quiz, err := h.study.GetQuiz(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, newQuizView(quiz))
}

func (h *StudyHandler) SubmitQuiz(c *gin.Context) {
	var req submitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Answers) == 0 {
		response.Error(c, errcode.ErrInvalid, "answers are required")
		return
	}
	answers := make([]service.AnswerInput, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, service.AnswerInput{QuestionIndex: a.QuestionIndex, SelectedAnswer: a.SelectedAnswer})
	}
	result, err := h.study.SubmitQuiz(c.Request.Context(), getUserID(c), c.Param("id"), answers)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *StudyHandler) QuizResults(c *gin.Context) {
	result, err := h.study.QuizResults(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *StudyHandler) DeleteQuiz(c *gin.Context) {
	if err := h.study.DeleteQuiz(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
