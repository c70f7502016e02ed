// Package outbox records domain events next to the data they describe and
// delivers them asynchronously to a Publisher.
//
// inputs: messages enqueued by the marketplace services
// outputs: publish calls, status updates, dead-letter moves on permanent failure
// error modes: db errors, publisher errors
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

// Topics emitted by the marketplace.
const (
	TopicJobCreated               = "job.created"
	TopicJobUpdated               = "job.updated"
	TopicJobDeleted               = "job.deleted"
	TopicApplicationCreated       = "application.created"
	TopicApplicationStatusChanged = "application.status_changed"
	TopicVerificationSubmitted    = "verification.submitted"
	TopicVerificationDecided      = "verification.decided"
)

// ErrMaxAttempts indicates the message reached max attempts
var ErrMaxAttempts = errors.New("max attempts reached")

// Publisher delivers an event payload to the outside world.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	// base 2^attempt seconds, capped
	if attempt > 16 {
		attempt = 16
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}

// Outbox writes events into the outbox table.
type Outbox struct {
	repo        repository.OutboxRepo
	logger      *slog.Logger
	maxAttempts int
}

func New(repo repository.OutboxRepo, logger *slog.Logger, maxAttempts int) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Outbox{repo: repo, logger: logger, maxAttempts: maxAttempts}
}

// Notify enqueues payload under topic. Failures are logged, never returned.
func (o *Outbox) Notify(ctx context.Context, topic string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		o.logger.Warn("encode event", "topic", topic, "err", err)
		return
	}
	m := &models.OutboxMessage{Topic: topic, Payload: b, MaxAttempts: o.maxAttempts}
	if _, err := o.repo.Enqueue(ctx, m); err != nil {
		o.logger.Warn("enqueue event", "topic", topic, "err", err)
	}
}
