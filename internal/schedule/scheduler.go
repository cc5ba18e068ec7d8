package schedule

import (
	"context"
	"fmt"
	"sync"
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
	Trigger(name string) bool
	Start(ctx context.Context)
	Stop()
}

type entry struct {
	id      cron.EntryID
	run     func()
	running *atomic.Bool
}

// CronScheduler runs jobs on five-field cron specs. A job never overlaps
// with itself: a tick or Trigger arriving while it runs is skipped.
type CronScheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	wg      sync.WaitGroup
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]*entry),
	}
}

// AddJob registers job under its name. An empty spec registers the job for
// Trigger only.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	e := &entry{running: &atomic.Bool{}}
	e.run = c.wrap(job, spec, e.running)
	if spec != "" {
		id, err := c.cron.AddFunc(spec, e.run)
		if err != nil {
			logger.Error("schedule job failed", zap.Error(err))
			return err
		}
		e.id = id
	}
	c.entries[name] = e
	logger.Info("job registered")
	return nil
}

// Trigger starts the named job in the background right away. It reports
// false for an unknown job.
func (c *CronScheduler) Trigger(name string) bool {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		e.run()
	}()
	return true
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	c.cron.Start()
}

// Stop waits for running jobs, cron ticks and triggered ones alike.
func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.wg.Wait()
}

func (c *CronScheduler) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *CronScheduler) wrap(job Job, spec string, running *atomic.Bool) func() {
	return func() {
		ctx := c.context()
		logger := logutil.GetLogger(ctx).With(
			zap.String("job", job.Name()),
			zap.String("spec", spec),
		)
		if !running.CompareAndSwap(false, true) {
			logger.Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		start := time.Now()
		logger.Info("job started")
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}
