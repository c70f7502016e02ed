package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	dbfs "github.com/garnizeh/jobmarket/db"
	"github.com/garnizeh/jobmarket/internal/db"
	"github.com/garnizeh/jobmarket/internal/outbox"
	"github.com/garnizeh/jobmarket/internal/repository/sqlite"
	"github.com/garnizeh/jobmarket/pkg/repository/mock"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type published struct {
	topic   string
	payload string
}

type fakePublisher struct {
	mu    sync.Mutex
	fail  error
	calls []published
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{topic, string(payload)})
	return p.fail
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{-3, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{9, 5 * time.Minute},
		{100, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := outbox.BackoffDuration(tt.attempt); got != tt.want {
			t.Fatalf("BackoffDuration(%d) = %v want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	repo := mock.NewRepo()
	o := outbox.New(repo, quiet, 3)

	o.Notify(ctx, outbox.TopicJobCreated, map[string]any{"id": "j1"})
	msgs := repo.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Topic != outbox.TopicJobCreated || msgs[0].MaxAttempts != 3 || msgs[0].Status != "queued" {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
	var payload map[string]string
	if err := json.Unmarshal(msgs[0].Payload, &payload); err != nil || payload["id"] != "j1" {
		t.Fatalf("unexpected payload %s: %v", msgs[0].Payload, err)
	}

	// unencodable payloads and store failures are swallowed
	o.Notify(ctx, outbox.TopicJobCreated, make(chan int))
	repo.Err = errors.New("disk full")
	o.Notify(ctx, outbox.TopicJobDeleted, map[string]any{"id": "j1"})
	repo.Err = nil
	if n := len(repo.Messages()); n != 1 {
		t.Fatalf("expected failed notifications to enqueue nothing, got %d messages", n)
	}
}

func TestWorkerPool_Delivers(t *testing.T) {
	ctx := context.Background()
	repo := mock.NewRepo()
	o := outbox.New(repo, quiet, 5)
	pub := &fakePublisher{}

	for i := 0; i < 5; i++ {
		o.Notify(ctx, outbox.TopicApplicationCreated, map[string]int{"n": i})
	}

	pool := outbox.NewWorkerPool(repo, pub, quiet, 3, 10*time.Millisecond)
	pool.Start(ctx)
	waitFor(t, func() bool { return pub.count() == 5 })
	pool.Stop()
	pool.Stop()

	for _, m := range repo.Messages() {
		if m.Status != "done" {
			t.Fatalf("expected every message done, got %+v", m)
		}
	}
	if pub.count() != 5 {
		t.Fatalf("expected each message published exactly once, got %d publishes", pub.count())
	}
}

func TestWorkerPool_RetryThenDeadLetter(t *testing.T) {
	ctx := context.Background()
	repo := mock.NewRepo()
	pub := &fakePublisher{fail: errors.New("broker down")}

	outbox.New(repo, quiet, 2).Notify(ctx, outbox.TopicVerificationDecided, map[string]string{"id": "v1"})

	pool := outbox.NewWorkerPool(repo, pub, quiet, 1, 10*time.Millisecond)
	pool.Start(ctx)
	waitFor(t, func() bool {
		msgs := repo.Messages()
		return len(msgs) == 1 && msgs[0].Status == "retry"
	})
	pool.Stop()

	m := repo.Messages()[0]
	if m.Attempts != 1 || m.LastError != "broker down" || m.NextTryAt == nil || !m.NextTryAt.After(time.Now()) {
		t.Fatalf("unexpected retry state: %+v", m)
	}

	// jump past the backoff so the second and final attempt runs
	repo.Now = func() time.Time { return time.Now().Add(time.Hour) }
	pool = outbox.NewWorkerPool(repo, pub, quiet, 1, 10*time.Millisecond)
	pool.Start(ctx)
	waitFor(t, func() bool { return len(repo.DeadLetters()) == 1 })
	pool.Stop()

	if len(repo.Messages()) != 0 {
		t.Fatalf("dead-lettered message must leave the outbox")
	}
	if dl := repo.DeadLetters()[0]; dl.Attempts != 2 || dl.Status != "failed" {
		t.Fatalf("unexpected dead letter: %+v", dl)
	}
}

func TestWorkerPool_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := outbox.NewWorkerPool(mock.NewRepo(), &fakePublisher{}, quiet, 2, time.Hour)
	pool.Start(ctx)
	cancel()
	pool.Stop()
}

func TestWorkerPool_SQLite(t *testing.T) {
	ctx := context.Background()
	d, err := db.New(ctx, ":memory:", quiet)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer d.Close()
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := sqlite.New(d, quiet)
	pub := &fakePublisher{}

	o := outbox.New(repo, quiet, 5)
	for i := 0; i < 10; i++ {
		o.Notify(ctx, outbox.TopicJobUpdated, map[string]int{"n": i})
	}

	pool := outbox.NewWorkerPool(repo, pub, quiet, 4, 5*time.Millisecond)
	pool.Start(ctx)
	waitFor(t, func() bool { return pub.count() >= 10 })
	pool.Stop()

	if pub.count() != 10 {
		t.Fatalf("expected 10 publishes with concurrent workers, got %d", pub.count())
	}
	var pending int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM outbox WHERE status != 'done'`).Scan(&pending); err != nil {
		t.Fatalf("count: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected all messages done, %d pending", pending)
	}
}

func TestLogPublisher(t *testing.T) {
	if err := outbox.NewLogPublisher(quiet).Publish(context.Background(), "job.created", []byte(`{}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestNewRedisClient_BadURL(t *testing.T) {
	for _, raw := range []string{"", "http://localhost:6379", "redis://localhost:notaport"} {
		if _, err := outbox.NewRedisClient(context.Background(), raw); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}
