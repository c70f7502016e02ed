package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garnizeh/jobmarket/api"
	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/config"
	"github.com/garnizeh/jobmarket/internal/files"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/internal/schema"
	"github.com/garnizeh/jobmarket/pkg/repository/mock"
)

const testSecret = "api-test-secret"

var (
	seekerUser   = &models.User{ID: "11111111-1111-1111-1111-111111111111", Email: "seeker@example.com", Role: models.RoleJobseeker}
	seeker2User  = &models.User{ID: "66666666-6666-6666-6666-666666666666", Email: "other@example.com", Role: models.RoleJobseeker}
	employerUser = &models.User{ID: "22222222-2222-2222-2222-222222222222", Email: "hr@acme.test", Role: models.RoleEmployer}
	adminUser    = &models.User{ID: "44444444-4444-4444-4444-444444444444", Email: "admin@example.com", Role: models.RoleAdmin}
	superUser    = &models.User{ID: "55555555-5555-5555-5555-555555555555", Email: "root@example.com", Role: models.RoleSuperadmin}
)

type testServer struct {
	handler http.Handler
	repo    *mock.Repo
	store   *files.LocalStore
	dir     string
	tokens  *auth.Tokens
	gate    *marketplace.Gate
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newServer(t *testing.T) *testServer {
	t.Helper()
	api.SetLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))

	repo := mock.NewRepo()
	dir := t.TempDir()
	store, err := files.NewLocalStore(dir, "/v1/files")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	reg, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tokens := auth.NewTokens(testSecret, time.Hour)
	gate := marketplace.NewGate(repo, nil, nil)
	cfg := &config.Config{Upload: config.UploadConfig{MaxBytes: 1 << 20}}
	svc := api.Services{
		Accounts:     auth.NewAccounts(repo, tokens),
		Jobs:         marketplace.NewJobService(repo, gate, nil, nil),
		Applications: marketplace.NewApplicationService(repo, repo, repo, nil, nil),
		Gate:         gate,
		Files:        store,
		FileAccess:   marketplace.NewFileAccess(repo, repo),
		Schemas:      reg,
		DB:           stubPinger{},
	}
	return &testServer{
		handler: api.SetupRoutes(cfg, "test", "now", svc),
		repo:    repo,
		store:   store,
		dir:     dir,
		tokens:  tokens,
		gate:    gate,
	}
}

func (s *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := s.tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

// approve gives the employer an approved verification.
func (s *testServer) approve(t *testing.T, u *models.User) {
	t.Helper()
	ctx := context.Background()
	p := auth.Principal{SubjectID: u.ID, Email: u.Email, Role: u.Role}
	v, err := s.gate.Submit(ctx, p, marketplace.SubmitInput{ProviderType: "company", ContactName: "HR", ContactEmail: u.Email})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	admin := auth.Principal{SubjectID: adminUser.ID, Email: adminUser.Email, Role: adminUser.Role}
	if _, err := s.gate.Decide(ctx, admin, v.ID, "approved"); err != nil {
		t.Fatalf("Decide: %v", err)
	}
}

// do sends a request with an optional bearer token and JSON body.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

type part struct {
	field, filename, content string
}

// multipartBody builds a form with plain values and file parts.
func multipartBody(t *testing.T, values map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, p.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, mw.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, method, path, token string, values map[string]string, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, values, parts...)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", ct)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

type response struct {
	Success       bool                          `json:"success"`
	Message       string                        `json:"message"`
	Errors        []marketplace.FieldError      `json:"errors"`
	Token         string                        `json:"token"`
	ID            string                        `json:"id"`
	Status        string                        `json:"status"`
	User          *models.User                  `json:"user"`
	Job           *models.Job                   `json:"job"`
	Jobs          json.RawMessage               `json:"jobs"`
	Pagination    *marketplace.Pagination       `json:"pagination"`
	Application   *models.Application           `json:"application"`
	Applications  []models.Application          `json:"applications"`
	Verification  *models.ProviderVerification  `json:"verification"`
	Verifications []models.ProviderVerification `json:"verifications"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q, body %s", ct, w.Body.String())
	}
	var r response
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return r
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) response {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status %d, want %d; body %s", w.Code, want, w.Body.String())
	}
	return decode(t, w)
}

func errorFields(r response) []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Field)
	}
	return out
}

func jobBody() map[string]any {
	return map[string]any{
		"title":       "Backend Engineer",
		"description": "Build services",
		"location":    "Remote",
		"company":     "Acme",
		"salaryMin":   4000,
		"salaryMax":   "6000",
		"skills":      "Go, SQL, ",
		"deadline":    "2030-06-30",
	}
}
