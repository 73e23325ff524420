package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/pkg/errcode"
	"github.com/xxxsen/studymate/internal/pkg/response"
	"github.com/xxxsen/studymate/internal/service"
)

type AIHandler struct {
	ai *service.AIService
}

func NewAIHandler(ai *service.AIService) *AIHandler {
	return &AIHandler{ai: ai}
}

type aiChatRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

type aiExplainRequest struct {
	DocumentID string `json:"document_id"`
	Concept    string `json:"concept"`
}

type aiSummaryRequest struct {
	DocumentID string `json:"document_id"`
}

func (h *AIHandler) Chat(c *gin.Context) {
	var req aiChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" || strings.TrimSpace(req.Question) == "" {
		response.Error(c, errcode.ErrInvalid, "document id and question are required")
		return
	}
	result, err := h.ai.Chat(c.Request.Context(), getUserID(c), req.DocumentID, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *AIHandler) Explain(c *gin.Context) {
	var req aiExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" || strings.TrimSpace(req.Concept) == "" {
		response.Error(c, errcode.ErrInvalid, "document id and concept are required")
		return
	}
	result, err := h.ai.ExplainConcept(c.Request.Context(), getUserID(c), req.DocumentID, req.Concept)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *AIHandler) Summary(c *gin.Context) {
	var req aiSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DocumentID) == "" {
		response.Error(c, errcode.ErrInvalid, "document id is required")
		return
	}
	result, err := h.ai.Summarize(c.Request.Context(), getUserID(c), req.DocumentID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *AIHandler) History(c *gin.Context) {
	messages, err := h.ai.ChatHistory(c.Request.Context(), getUserID(c), c.Param("documentId"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, messages)
}

func (h *AIHandler) Search(c *gin.Context) {
	limit := int(queryUint(c, "limit", 0, 0))
	chunks, err := h.ai.Search(c.Request.Context(), getUserID(c), c.Param("id"), c.Query("q"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"query": c.Query("q"), "chunks": chunks})
}
