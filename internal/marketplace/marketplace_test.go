package marketplace_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/pkg/repository/mock"
)

var (
	anon     = auth.Anonymous
	seeker   = auth.Principal{SubjectID: "11111111-1111-1111-1111-111111111111", Email: "seeker@example.com", Role: models.RoleJobseeker}
	seeker2  = auth.Principal{SubjectID: "66666666-6666-6666-6666-666666666666", Email: "other.seeker@example.com", Role: models.RoleJobseeker}
	employer = auth.Principal{SubjectID: "22222222-2222-2222-2222-222222222222", Email: "hr@acme.test", Role: models.RoleEmployer}
	rival    = auth.Principal{SubjectID: "33333333-3333-3333-3333-333333333333", Email: "hr@initech.test", Role: models.RoleEmployer}
	admin    = auth.Principal{SubjectID: "44444444-4444-4444-4444-444444444444", Email: "admin@example.com", Role: models.RoleAdmin}
)

type event struct {
	topic   string
	payload any
}

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Notify(_ context.Context, topic string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{topic, payload})
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.topic)
	}
	return out
}

type env struct {
	repo  *mock.Repo
	gate  *marketplace.Gate
	jobs  *marketplace.JobService
	apps  *marketplace.ApplicationService
	files *marketplace.FileAccess
	rec   *recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := mock.NewRepo()
	rec := &recorder{}
	gate := marketplace.NewGate(repo, rec, nil)
	return &env{
		repo:  repo,
		gate:  gate,
		jobs:  marketplace.NewJobService(repo, gate, rec, nil),
		apps:  marketplace.NewApplicationService(repo, repo, repo, rec, nil),
		files: marketplace.NewFileAccess(repo, repo),
		rec:   rec,
	}
}

// approve submits a verification for p and approves it as admin.
func (e *env) approve(t *testing.T, p auth.Principal) *models.ProviderVerification {
	t.Helper()
	v := e.submit(t, p)
	v, err := e.gate.Decide(context.Background(), admin, v.ID, "approved")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	return v
}

func (e *env) submit(t *testing.T, p auth.Principal) *models.ProviderVerification {
	t.Helper()
	v, err := e.gate.Submit(context.Background(), p, marketplace.SubmitInput{
		ProviderType: "company",
		ContactName:  "Hiring Team",
		ContactEmail: p.Email,
		Documents:    map[string]string{models.DocTaxID: "tax.pdf"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return v
}

func validJob() marketplace.JobInput {
	return marketplace.JobInput{
		Title:       "Backend Engineer",
		Description: "Build and run services",
		Location:    "Remote",
		Company:     "Acme",
		SalaryMin:   "5000",
		SalaryMax:   "9000",
		Skills:      []string{" Go ", "", "SQL", "go"},
		Deadline:    "2030-01-31",
	}
}

// activeJob creates an active job as an approved employer.
func (e *env) activeJob(t *testing.T, owner auth.Principal) *models.Job {
	t.Helper()
	j, err := e.jobs.CreateAsEmployer(context.Background(), owner, validJob())
	if err != nil {
		t.Fatalf("CreateAsEmployer: %v", err)
	}
	return j
}

func fields(t *testing.T, err error) []string {
	t.Helper()
	var verr *marketplace.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	out := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, f.Field)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
