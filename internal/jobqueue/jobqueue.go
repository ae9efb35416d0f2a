// Package jobqueue implements the durable job queue and worker pool
// (SPEC_FULL.md §4.10): atomic claiming against relstore.Store's
// FOR UPDATE SKIP LOCKED query, heartbeats, retry-with-backoff, and a
// recovery sweep for stale running jobs. Grounded on
// internal/folding/manager.go's timeoutCancels/shutdownChan shutdown
// discipline (Shutdown closes a channel once, cancels in-flight work, and
// reports IsShutdown), generalized from per-branch timeout watchers to a
// process-wide poll loop.
package jobqueue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/Generation-One/fold/internal/relstore"
	"go.uber.org/zap"
)

// Handler processes one claimed job's payload. A returned error moves the
// job to retry (or failed, once max_retries is exhausted); a nil return
// completes it.
type Handler func(ctx context.Context, job foldcore.Job) error

// Config tunes the pool, per spec §4.10/§6.4's queue.* surface.
type Config struct {
	Workers             int
	HeartbeatInterval   time.Duration
	StaleAfter          time.Duration
	SweepInterval       time.Duration
	MaxRetries          int
	BaseBackoff         time.Duration
	MaxBackoff          time.Duration
	PollInterval        time.Duration
	ShutdownGracePeriod time.Duration
}

// DefaultConfig matches spec §4.10/§6.4's defaults.
func DefaultConfig() Config {
	return Config{
		Workers:             2,
		HeartbeatInterval:   30 * time.Second,
		StaleAfter:          5 * time.Minute,
		SweepInterval:       60 * time.Second,
		MaxRetries:          3,
		BaseBackoff:         time.Minute,
		MaxBackoff:          2 * time.Hour,
		PollInterval:        2 * time.Second,
		ShutdownGracePeriod: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = d.BaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ShutdownGracePeriod <= 0 {
		c.ShutdownGracePeriod = d.ShutdownGracePeriod
	}
	return c
}

// Pool is the worker pool of spec §4.10/§9: N poll-claim-execute workers
// plus a single recovery-sweep goroutine, owned for the process lifetime.
type Pool struct {
	rel      relstore.Store
	handlers map[string]Handler
	cfg      Config
	log      *zap.Logger

	shutdownMu   sync.Mutex
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	isShutdown   bool

	wg sync.WaitGroup
}

// New builds a Pool. Register handlers with Handle before calling Run.
func New(rel relstore.Store, cfg Config, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		rel:        rel,
		handlers:   map[string]Handler{},
		cfg:        cfg.withDefaults(),
		log:        log,
		shutdownCh: make(chan struct{}),
	}
}

// Handle registers the handler for a job type. Unknown types fail
// immediately when claimed, per spec §4.10's "unknown types fail
// immediately".
func (p *Pool) Handle(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// Run starts cfg.Workers poll-claim-execute workers and one recovery-sweep
// goroutine, blocking until ctx is cancelled or Shutdown is called.
func (p *Pool) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < p.cfg.Workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go p.runWorker(ctx, workerID)
	}

	p.wg.Add(1)
	go p.runSweeper(ctx)

	select {
	case <-ctx.Done():
	case <-p.shutdownCh:
		cancel()
	}
	p.wg.Wait()
}

// Shutdown stops accepting new claims and cancels the context of in-flight
// jobs at once (Run cancels its context as soon as shutdownCh closes), then
// waits up to cfg.ShutdownGracePeriod for the workers to return; jobs still
// running past that deadline are left for the next stale-recovery sweep.
// In-flight jobs are not given the grace period to finish uncancelled.
func (p *Pool) Shutdown(ctx context.Context) {
	p.shutdownOnce.Do(func() {
		p.shutdownMu.Lock()
		p.isShutdown = true
		p.shutdownMu.Unlock()
		close(p.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownGracePeriod):
		p.log.Warn("jobqueue: shutdown grace period elapsed, leaving in-flight jobs to stale recovery")
	case <-ctx.Done():
	}
}

func (p *Pool) IsShutdown() bool {
	p.shutdownMu.Lock()
	defer p.shutdownMu.Unlock()
	return p.isShutdown
}

func (p *Pool) runWorker(ctx context.Context, workerID string) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.IsShutdown() {
				return
			}
			p.claimAndRun(ctx, workerID)
		}
	}
}

// claimAndRun implements the claim -> heartbeat -> handle -> transition
// sequence of spec §4.10. Claim itself is the single atomic transaction
// (relstore.Store.Claim); everything after it is cooperative.
func (p *Pool) claimAndRun(ctx context.Context, workerID string) {
	job, err := p.rel.Claim(ctx, workerID)
	if err != nil {
		if !foldcore.Is(err, foldcore.NotFound) {
			p.log.Warn("jobqueue: claim failed", zap.String("worker", workerID), zap.Error(err))
		}
		return
	}

	handler, ok := p.handlers[job.Type]
	if !ok {
		p.fail(ctx, job, fmt.Sprintf("unknown job type %q", job.Type))
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	hbDone := make(chan struct{})
	go p.heartbeat(jobCtx, job.ID, workerID, hbDone)

	err = handler(jobCtx, job)
	cancel()
	<-hbDone

	switch {
	case err == nil:
		if cerr := p.rel.CompleteJob(ctx, job.ID); cerr != nil {
			p.log.Warn("jobqueue: complete failed", zap.String("job", job.ID), zap.Error(cerr))
		}
	case foldcore.Is(err, foldcore.Cancelled):
		p.retry(ctx, job, "cancelled")
	case job.Attempts >= maxRetriesFor(job, p.cfg):
		p.fail(ctx, job, err.Error())
	default:
		p.retry(ctx, job, err.Error())
	}
}

// maxRetriesFor resolves the retry bound for a claimed job: the job's own
// max_retries (set at Enqueue, persisted by relstore per spec §3's Job
// entity) takes precedence, falling back to the pool-wide Config.MaxRetries
// only when the job carries no value of its own. A job transitions to
// failed once Attempts reaches this bound, giving it exactly max_retries+1
// total attempts (spec §8 P7).
func maxRetriesFor(job foldcore.Job, cfg Config) int {
	if job.MaxRetries > 0 {
		return job.MaxRetries
	}
	return cfg.MaxRetries
}

func (p *Pool) retry(ctx context.Context, job foldcore.Job, lastError string) {
	scheduledAt := time.Now().UTC().Add(backoff(job.Attempts, p.cfg.BaseBackoff, p.cfg.MaxBackoff))
	if err := p.rel.RetryJob(ctx, job.ID, lastError, scheduledAt); err != nil {
		p.log.Warn("jobqueue: retry transition failed", zap.String("job", job.ID), zap.Error(err))
	}
}

func (p *Pool) fail(ctx context.Context, job foldcore.Job, lastError string) {
	if err := p.rel.FailJob(ctx, job.ID, lastError); err != nil {
		p.log.Warn("jobqueue: fail transition failed", zap.String("job", job.ID), zap.Error(err))
	}
}

// heartbeat refreshes locked_at every cfg.HeartbeatInterval until jobCtx is
// cancelled, per spec §4.10/§5.
func (p *Pool) heartbeat(jobCtx context.Context, jobID, workerID string, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-jobCtx.Done():
			return
		case <-ticker.C:
			if err := p.rel.Heartbeat(context.Background(), jobID, workerID, time.Now().UTC()); err != nil {
				p.log.Warn("jobqueue: heartbeat failed", zap.String("job", jobID), zap.Error(err))
			}
		}
	}
}

// runSweeper implements the recovery sweep of spec §4.10/P6: every
// cfg.SweepInterval, any running job whose locked_at predates
// cfg.StaleAfter is returned to retry.
func (p *Pool) runSweeper(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			staleBefore := time.Now().UTC().Add(-p.cfg.StaleAfter)
			n, err := p.rel.SweepStale(ctx, staleBefore)
			if err != nil {
				p.log.Warn("jobqueue: stale sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				p.log.Info("jobqueue: recovered stale jobs", zap.Int("count", n))
			}
		}
	}
}

// backoff computes spec §4.10's exponential-backoff-with-jitter delay:
// min(base*2^n, max) +/- 25%.
func backoff(attempt int, base, maxBackoff time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := 1 + (rand.Float64()*0.5 - 0.25) // nolint:gosec // scheduling jitter, not security-sensitive
	return time.Duration(float64(d) * jitter)
}

// Enqueue inserts a new job with spec §4.10's defaults for fields the
// caller left zero.
func Enqueue(ctx context.Context, rel relstore.Store, job foldcore.Job) error {
	if job.Status == "" {
		job.Status = foldcore.JobPending
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = DefaultConfig().MaxRetries
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	return rel.EnqueueJob(ctx, job)
}
