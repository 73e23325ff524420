package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/config"
	"github.com/xxxsen/studymate/internal/extract"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/timeutil"
	"github.com/xxxsen/studymate/internal/repo"
	"github.com/xxxsen/studymate/internal/retrieval"
)

const (
	maxFailReason    = 500
	failWriteTimeout = 10 * time.Second
)

var (
	ErrQueueFull = errors.New("ingestion queue is full")
	ErrStopped   = errors.New("ingestion orchestrator stopped")
)

type Task struct {
	DocumentID string
	FileKey    string
}

type Fetcher interface {
	Fetch(ctx context.Context, key string) (string, func(), error)
}

// Store persists the terminal state of an ingestion. Both writes only apply
// to documents that are still processing.
type Store interface {
	CompleteIngestion(ctx context.Context, docID string, res repo.IngestionResult) error
	FailIngestion(ctx context.Context, docID, reason string, mtime int64) error
}

type Config struct {
	TargetSize      int
	Overlap         int
	Workers         int
	QueueSize       int
	TaskTimeout     time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func ConfigFrom(c config.IngestConfig) Config {
	return Config{
		TargetSize:      c.TargetSize,
		Overlap:         c.Overlap,
		Workers:         c.Workers,
		QueueSize:       c.QueueSize,
		TaskTimeout:     time.Duration(c.TaskTimeoutSeconds) * time.Second,
		MaxRetries:      c.Retry.MaxRetries,
		InitialInterval: time.Duration(c.Retry.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(c.Retry.MaxIntervalMs) * time.Millisecond,
	}
}

type Orchestrator struct {
	cfg       Config
	extractor extract.Extractor
	fetcher   Fetcher
	store     Store
	now       func() int64

	queue   chan Task
	mu      sync.RWMutex
	started bool
	stopped bool
	baseCtx context.Context
	wg      sync.WaitGroup
}

func New(cfg Config, extractor extract.Extractor, fetcher Fetcher, store Store) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &Orchestrator{
		cfg:       cfg,
		extractor: extractor,
		fetcher:   fetcher,
		store:     store,
		now:       timeutil.NowUnix,
		queue:     make(chan Task, cfg.QueueSize),
		baseCtx:   context.Background(),
	}
}

// Start launches the workers. Tasks inherit values from ctx but never its
// cancellation.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.stopped {
		return
	}
	o.started = true
	o.baseCtx = context.WithoutCancel(ctx)
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}
	logutil.GetLogger(ctx).Info("ingestion workers started",
		zap.Int("workers", o.cfg.Workers), zap.Int("queue_size", o.cfg.QueueSize))
}

// Stop closes intake, lets the workers drain queued tasks and waits for them.
// Without workers the queued documents are marked failed so none is left
// processing.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	started := o.started
	close(o.queue)
	o.mu.Unlock()
	if !started {
		for task := range o.queue {
			o.fail(o.baseCtx, task, ErrStopped)
		}
		return
	}
	o.wg.Wait()
}

// Submit enqueues a task without waiting for it to run.
func (o *Orchestrator) Submit(ctx context.Context, task Task) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return ErrStopped
	}
	select {
	case o.queue <- task:
		logutil.GetLogger(ctx).Debug("ingestion task queued", zap.String("doc_id", task.DocumentID))
		return nil
	default:
		return ErrQueueFull
	}
}

func (o *Orchestrator) worker(idx int) {
	defer o.wg.Done()
	for task := range o.queue {
		o.process(idx, task)
	}
}

func (o *Orchestrator) process(idx int, task Task) {
	ctx := o.baseCtx
	if o.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TaskTimeout)
		defer cancel()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", task.DocumentID), zap.Int("worker", idx))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion panicked", zap.Any("panic", r))
			o.fail(ctx, task, fmt.Errorf("internal error: %v", r))
		}
	}()

	start := time.Now()
	logger.Info("ingestion started", zap.String("file_key", task.FileKey))
	res, err := o.ingest(ctx, task)
	if err != nil {
		logger.Error("ingestion failed", zap.Error(err), zap.Duration("cost", time.Since(start)))
		o.fail(ctx, task, err)
		return
	}
	err = o.store.CompleteIngestion(ctx, task.DocumentID, *res)
	switch {
	case err == nil:
		logger.Info("ingestion finished",
			zap.Int("chunks", len(res.Chunks)),
			zap.Int("pages", res.PageCount),
			zap.Duration("cost", time.Since(start)))
	case isLostUpdate(err):
		logger.Warn("ingestion result discarded, document no longer processing", zap.Error(err))
	default:
		logger.Error("persist ingestion result failed", zap.Error(err))
		o.fail(ctx, task, fmt.Errorf("persist result: %w", err))
	}
}

func (o *Orchestrator) ingest(ctx context.Context, task Task) (*repo.IngestionResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", task.DocumentID))
	path, cleanup, err := o.fetcher.Fetch(ctx, task.FileKey)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer cleanup()

	result, err := o.extractWithRetry(ctx, task, path)
	if err != nil {
		return nil, err
	}
	logger.Info("text extracted", zap.Int("chars", len(result.Text)), zap.Int("pages", result.PageCount))

	chunks := retrieval.Chunk(result.Text, o.cfg.TargetSize, o.cfg.Overlap)
	logger.Info("chunks created", zap.Int("count", len(chunks)))
	return &repo.IngestionResult{
		Chunks:    chunks,
		RawText:   result.Text,
		PageCount: result.PageCount,
		Mtime:     o.now(),
	}, nil
}

func (o *Orchestrator) extractWithRetry(ctx context.Context, task Task, path string) (*extract.Result, error) {
	b := backoff.NewExponentialBackOff()
	if o.cfg.InitialInterval > 0 {
		b.InitialInterval = o.cfg.InitialInterval
	}
	if o.cfg.MaxInterval > 0 {
		b.MaxInterval = o.cfg.MaxInterval
	}
	b.MaxElapsedTime = 0
	maxRetries := o.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)

	var (
		result  *extract.Result
		attempt int
	)
	operation := func() error {
		attempt++
		res, err := o.extractor.Extract(ctx, path)
		if err != nil {
			if extract.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			logutil.GetLogger(ctx).Warn("extraction attempt failed",
				zap.String("doc_id", task.DocumentID), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		result = res
		return nil
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, task Task, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", task.DocumentID))
	err := o.store.FailIngestion(ctx, task.DocumentID, failReason(cause), o.now())
	switch {
	case err == nil:
		logger.Info("document marked failed")
	case isLostUpdate(err):
		logger.Warn("failure not recorded, document no longer processing", zap.Error(err))
	default:
		logger.Error("mark document failed", zap.Error(err))
	}
}

func isLostUpdate(err error) bool {
	return errors.Is(err, repo.ErrStatusConflict) || errors.Is(err, appErr.ErrNotFound)
}

func failReason(err error) string {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "ingestion timed out: " + msg
	}
	if len(msg) > maxFailReason {
		msg = strings.ToValidUTF8(msg[:maxFailReason], "")
	}
	return msg
}
