package api

import (
	"net/http"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/config"
	"github.com/garnizeh/jobmarket/internal/files"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/schema"
	"github.com/gorilla/mux"
)

// Services bundles what the handlers depend on.
type Services struct {
	Accounts     *auth.Accounts
	Jobs         *marketplace.JobService
	Applications *marketplace.ApplicationService
	Gate         *marketplace.Gate
	Files        files.Store
	FileAccess   *marketplace.FileAccess
	Schemas      *schema.Registry
	DB           Pinger
}

func SetupRoutes(cfg *config.Config, version, buildTime string, svc Services) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	if cfg.RateLimit.RPS > 0 {
		r.Use(NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware)
	}

	tokens := svc.Accounts.Tokens()
	optional := AuthMiddleware(tokens, false)

	// Create handlers
	systemHandler := NewSystemHandler(svc.DB)
	authHandler := NewAuthHandler(svc.Accounts)
	jobsHandler := NewJobsHandler(svc.Jobs, svc.Schemas)
	appsHandler := NewApplicationsHandler(svc.Applications, svc.Files, svc.Schemas, cfg.Upload.MaxBytes)
	verificationHandler := NewVerificationHandler(svc.Gate, svc.Files, svc.Schemas, cfg.Upload.MaxBytes)
	filesHandler := NewFilesHandler(svc.Files, svc.FileAccess)

	// Preflight requests only need the CORS headers.
	r.MatcherFunc(isPreflight).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods(http.MethodPost)

	// Public job browsing; a token, when sent, widens what is visible.
	r.Handle("/v1/jobs", optional(http.HandlerFunc(jobsHandler.List))).Methods(http.MethodGet)
	r.Handle("/v1/jobs/{id}", optional(http.HandlerFunc(jobsHandler.Get))).Methods(http.MethodGet)

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(AuthMiddleware(tokens, true))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods(http.MethodPost)
	authV1.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)
	apiV1.HandleFunc("/admin/users", authHandler.CreateAdmin).Methods(http.MethodPost)

	// Jobs
	apiV1.HandleFunc("/jobs", jobsHandler.CreateAsAdmin).Methods(http.MethodPost)
	apiV1.HandleFunc("/employer-jobs", jobsHandler.ListForEmployer).Methods(http.MethodGet)
	apiV1.HandleFunc("/employer-jobs", jobsHandler.CreateAsEmployer).Methods(http.MethodPost)
	apiV1.HandleFunc("/jobs/{id}", jobsHandler.Update).Methods(http.MethodPut)
	apiV1.HandleFunc("/jobs/{id}", jobsHandler.Patch).Methods(http.MethodPatch)
	apiV1.HandleFunc("/jobs/{id}", jobsHandler.Delete).Methods(http.MethodDelete)

	// Applications
	apiV1.HandleFunc("/applications", appsHandler.Apply).Methods(http.MethodPost)
	apiV1.HandleFunc("/applications", appsHandler.ListMine).Methods(http.MethodGet)
	apiV1.HandleFunc("/admin/applications", appsHandler.ListAll).Methods(http.MethodGet)
	apiV1.HandleFunc("/applications/{id}", appsHandler.Get).Methods(http.MethodGet)
	apiV1.HandleFunc("/applications/{id}", appsHandler.Patch).Methods(http.MethodPatch)
	apiV1.HandleFunc("/applications/{id}", appsHandler.Delete).Methods(http.MethodDelete)
	apiV1.HandleFunc("/applications/{id}/shortlist", appsHandler.Shortlist).Methods(http.MethodPost)

	// Provider verification
	apiV1.HandleFunc("/provider-verification", verificationHandler.Submit).Methods(http.MethodPost)
	apiV1.HandleFunc("/provider-verification", verificationHandler.List).Methods(http.MethodGet)
	apiV1.HandleFunc("/provider-verification/{id}", verificationHandler.Decide).Methods(http.MethodPatch)

	// Stored uploads
	apiV1.HandleFunc("/files/{name}", filesHandler.Serve).Methods(http.MethodGet)

	return r
}

// isPreflight matches OPTIONS on any path without turning other methods on
// unknown paths into 405s.
func isPreflight(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodOptions
}
