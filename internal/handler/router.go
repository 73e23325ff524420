package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/middleware"
)

type RouterDeps struct {
	Auth        *AuthHandler
	Documents   *DocumentHandler
	AI          *AIHandler
	Study       *StudyHandler
	Files       *FileHandler
	JWTSecret   []byte
	AIRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)
	api.GET("/files/:key", deps.Files.Get)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/auth/profile", deps.Auth.Profile)
	authGroup.PUT("/auth/profile", deps.Auth.UpdateProfile)
	authGroup.PUT("/auth/change-password", deps.Auth.ChangePassword)

	authGroup.POST("/documents/upload", deps.Documents.Upload)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.PUT("/documents/:id", deps.Documents.Update)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)
	authGroup.GET("/documents/:id/status", deps.Documents.Status)
	authGroup.GET("/documents/:id/search", deps.AI.Search)
	authGroup.GET("/documents/:id/flashcards", deps.Study.DocumentFlashcards)
	authGroup.GET("/documents/:id/quizzes", deps.Study.DocumentQuizzes)

	authGroup.GET("/flashcards", deps.Study.ListFlashcards)
	authGroup.PUT("/flashcards/:id/review", deps.Study.ReviewFlashcard)
	authGroup.PUT("/flashcards/:id/star", deps.Study.StarFlashcard)
	authGroup.DELETE("/flashcards/:id", deps.Study.DeleteFlashcard)

	authGroup.GET("/quizzes/:id", deps.Study.GetQuiz)
	authGroup.POST("/quizzes/:id/submit", deps.Study.SubmitQuiz)
	authGroup.GET("/quizzes/:id/results", deps.Study.QuizResults)
	authGroup.DELETE("/quizzes/:id", deps.Study.DeleteQuiz)

	limited := authGroup.Group("/ai")
	limited.Use(middleware.RateLimit(deps.AIRateLimit))
	limited.POST("/chat", deps.AI.Chat)
	limited.POST("/explain-concept", deps.AI.Explain)
	limited.POST("/generate-summary", deps.AI.Summary)
	limited.POST("/generate-flashcards", deps.Study.GenerateFlashcards)
	limited.POST("/generate-quiz", deps.Study.GenerateQuiz)
	authGroup.GET("/ai/chat-history/:documentId", deps.AI.History)
}
