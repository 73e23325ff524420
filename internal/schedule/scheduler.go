package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	RunNow(name string) error
	Start(ctx context.Context)
	Stop()
}

type scheduledJob struct {
	job     Job
	spec    string
	entry   cron.EntryID
	running atomic.Bool
}

// CronScheduler runs jobs on five-field cron specs. A job whose previous run
// has not finished is skipped rather than started twice.
type CronScheduler struct {
	cron *cron.Cron
	jobs map[string]*scheduledJob
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]*scheduledJob),
		ctx:  context.Background(),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	if _, ok := c.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	sj := &scheduledJob{job: job, spec: spec}
	entryID, err := c.cron.AddFunc(spec, func() { c.run(sj) })
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	sj.entry = entryID
	c.jobs[name] = sj
	logger.Info("job scheduled")
	return nil
}

// RunNow starts a scheduled job outside its schedule without waiting for it.
func (c *CronScheduler) RunNow(name string) error {
	sj, ok := c.jobs[name]
	if !ok {
		return fmt.Errorf("job %s not scheduled", name)
	}
	go c.run(sj)
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
	c.cron.Start()
}

// Stop stops the schedule and waits for running jobs to return.
func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) run(sj *scheduledJob) {
	logger := logutil.GetLogger(c.ctx).With(
		zap.String("job", sj.job.Name()),
		zap.String("spec", sj.spec),
	)
	if !sj.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return
	}
	defer sj.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	start := time.Now()
	logger.Info("job started")
	err := sj.job.Run(c.ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
}
