package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/config"
	"github.com/xxxsen/studymate/internal/extract"
	"github.com/xxxsen/studymate/internal/filestore"
	"github.com/xxxsen/studymate/internal/handler"
	"github.com/xxxsen/studymate/internal/ingest"
	"github.com/xxxsen/studymate/internal/job"
	"github.com/xxxsen/studymate/internal/middleware"
	"github.com/xxxsen/studymate/internal/repo"
	"github.com/xxxsen/studymate/internal/schedule"
	"github.com/xxxsen/studymate/internal/service"
)

const shutdownTimeout = 15 * time.Second

func runServer(cfg *config.Config, db *sql.DB) error {
	logger := logutil.GetLogger(context.Background())
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo := repo.NewUserRepo(db)
	docRepo := repo.NewDocumentRepo(db)
	chatRepo := repo.NewChatHistoryRepo(db)
	flashcardRepo := repo.NewFlashcardRepo(db)
	quizRepo := repo.NewQuizRepo(db)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	mux := extract.NewMux(cfg.Ingest.PDFToolPath)
	if err := extract.CheckAvailable(cfg.Ingest.PDFToolPath); err != nil {
		logger.Warn("pdf extraction unavailable, pdf uploads will fail", zap.Error(err))
	}
	orch := ingest.New(ingest.ConfigFrom(cfg.Ingest), mux, store, docRepo)
	orch.Start(ctx)

	gen := buildGenerator(cfg.AI)
	manager := ai.NewManager(gen, ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	})

	jwtSecret := []byte(cfg.JWTSecret)
	authService := service.NewAuthService(userRepo, jwtSecret, time.Hour*time.Duration(cfg.JWTTTLHours))
	documentService := service.NewDocumentService(docRepo, chatRepo, store, orch, mux, cfg.Upload.MaxBytes)
	documentService.AddCleaners(flashcardRepo, quizRepo)
	studyService := service.NewStudyService(documentService, flashcardRepo, quizRepo, manager)
	aiService := service.NewAIService(documentService, chatRepo, manager,
		cfg.AI.SummaryCache.Size, time.Duration(cfg.AI.SummaryCache.TTLMinutes)*time.Minute)

	deps := handler.RouterDeps{
		Auth:        handler.NewAuthHandler(authService),
		Documents:   handler.NewDocumentHandler(documentService, cfg.Upload.MaxBytes),
		AI:          handler.NewAIHandler(aiService),
		Study:       handler.NewStudyHandler(studyService),
		Files:       handler.NewFileHandler(store),
		JWTSecret:   jwtSecret,
		AIRateLimit: time.Duration(cfg.AIRateLimitSeconds) * time.Second,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		orch.Stop()
		return fmt.Errorf("init web engine: %w", err)
	}

	cron := schedule.NewCronScheduler()
	staleJob := job.NewStaleIngestionJob(docRepo, time.Duration(cfg.Ingest.StaleAfterMinutes)*time.Minute)
	if err := cron.AddJob(staleJob, cfg.Ingest.StaleCheckSpec); err != nil {
		orch.Stop()
		return fmt.Errorf("schedule stale ingestion job: %w", err)
	}
	cron.Start(ctx)
	// documents left processing by a previous run are swept right away.
	if err := cron.RunNow(staleJob.Name()); err != nil {
		logger.Warn("startup stale sweep failed", zap.Error(err))
	}

	srv := &http.Server{Addr: addr, Handler: engine}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("server stopping...")
	case err, ok := <-serveErr:
		if ok {
			logger.Error("server error", zap.Error(err))
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	cron.Stop()
	orch.Stop()
	logger.Info("server stopped")
	return runErr
}

// buildGenerator returns nil when no provider can be built, in which case
// every AI endpoint reports the assistant as unavailable.
func buildGenerator(cfg config.AIConfig) ai.IGenerator {
	gen, err := ai.NewGeneratorFromConfig(cfg)
	if err != nil {
		logutil.GetLogger(context.Background()).Warn("ai generator disabled", zap.Error(err))
		return nil
	}
	return gen
}
