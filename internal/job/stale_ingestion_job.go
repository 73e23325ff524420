package job

import (
	"context"
	"errors"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/timeutil"
)

const (
	staleReason    = "ingestion timed out"
	staleBatchSize = 100
)

type StaleDocumentStore interface {
	ListStaleProcessing(ctx context.Context, before int64, limit uint) ([]model.Document, error)
	FailIngestion(ctx context.Context, docID, reason string, mtime int64) error
}

// StaleIngestionJob fails documents left processing for longer than maxAge,
// typically because the process restarted while their task was queued.
type StaleIngestionJob struct {
	docs   StaleDocumentStore
	maxAge time.Duration
	now    func() int64
}

func NewStaleIngestionJob(docs StaleDocumentStore, maxAge time.Duration) *StaleIngestionJob {
	return &StaleIngestionJob{docs: docs, maxAge: maxAge, now: timeutil.NowUnix}
}

func (j *StaleIngestionJob) Name() string {
	return "stale_ingestion"
}

func (j *StaleIngestionJob) Run(ctx context.Context) error {
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	now := j.now()
	cutoff := now - int64(maxAge/time.Second)
	logger := logutil.GetLogger(ctx)
	failed := 0
	for {
		docs, err := j.docs.ListStaleProcessing(ctx, cutoff, staleBatchSize)
		if err != nil {
			return err
		}
		progressed := 0
		for _, doc := range docs {
			err := j.docs.FailIngestion(ctx, doc.ID, staleReason, now)
			switch {
			case err == nil:
				failed++
				progressed++
				logger.Warn("stale ingestion failed", zap.String("doc_id", doc.ID), zap.Int64("ctime", doc.Ctime))
			case errors.Is(err, appErr.ErrConflict), errors.Is(err, appErr.ErrNotFound):
				// finished or deleted since it was listed
				progressed++
			default:
				return err
			}
		}
		if len(docs) < staleBatchSize || progressed == 0 {
			break
		}
	}
	if failed > 0 {
		logger.Info("stale ingestion sweep done", zap.Int("failed", failed))
	}
	return nil
}
