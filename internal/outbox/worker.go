package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/jobmarket/pkg/repository"
)

type WorkerPool struct {
	repo         repository.OutboxRepo
	publisher    Publisher
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo repository.OutboxRepo, publisher Publisher, logger *slog.Logger, workerCount int, pollInterval time.Duration) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		stop:         make(chan struct{}),
	}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("outbox worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, outbox worker exiting", "id", id)
			return
		default:
		}

		delivered, err := p.deliverNext(ctx)
		if err != nil {
			p.logger.Error("fetch message", "err", err)
		}
		if delivered {
			continue
		}

		select {
		case <-p.stop:
		case <-ctx.Done():
		case <-time.After(p.pollInterval):
		}
	}
}

// deliverNext handles at most one message and reports whether one was found.
func (p *WorkerPool) deliverNext(ctx context.Context) (bool, error) {
	m, err := p.repo.FetchNext(ctx)
	if err != nil || m == nil {
		return false, err
	}

	err = p.publisher.Publish(ctx, m.Topic, m.Payload)
	if err == nil {
		m.Status = "done"
		if upErr := p.repo.UpdateMessage(ctx, m); upErr != nil {
			p.logger.Error("mark message done", "id", m.ID, "err", upErr)
		}
		return true, nil
	}

	m.Attempts++
	m.LastError = err.Error()
	if m.Attempts >= m.MaxAttempts {
		m.Status = "failed"
		p.logger.Warn("message dead-lettered", "id", m.ID, "topic", m.Topic, "err", ErrMaxAttempts)
		if mvErr := p.repo.MoveToDeadLetter(ctx, m); mvErr != nil {
			p.logger.Error("move to dead letter", "err", mvErr)
		}
		return true, nil
	}

	t := time.Now().Add(BackoffDuration(m.Attempts))
	m.NextTryAt = &t
	m.Status = "retry"
	if upErr := p.repo.UpdateMessage(ctx, m); upErr != nil {
		p.logger.Error("update message for retry", "err", upErr)
	}
	return true, nil
}
