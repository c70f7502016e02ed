package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/internal/schema"
	"github.com/gorilla/mux"
)

type JobsHandler struct {
	jobs    *marketplace.JobService
	schemas *schema.Registry
}

func NewJobsHandler(jobs *marketplace.JobService, schemas *schema.Registry) *JobsHandler {
	return &JobsHandler{jobs: jobs, schemas: schemas}
}

// numberText accepts a JSON number or string and keeps its text for the
// service to validate.
type numberText string

func (n *numberText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numberText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = numberText(num.String())
	return nil
}

// skillList accepts an array of strings or one comma-separated string.
type skillList []string

func (s *skillList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		*s = strings.Split(raw, ",")
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

type jobRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	Company         string     `json:"company"`
	SalaryMin       numberText `json:"salaryMin"`
	SalaryMax       numberText `json:"salaryMax"`
	TotalExperience numberText `json:"totalExperience"`
	Skills          skillList  `json:"skills"`
	Availability    string     `json:"availability"`
	Deadline        string     `json:"deadline"`
	IsActive        *bool      `json:"isActive"`
}

func (req jobRequest) input() marketplace.JobInput {
	return marketplace.JobInput{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		Company:         req.Company,
		SalaryMin:       string(req.SalaryMin),
		SalaryMax:       string(req.SalaryMax),
		TotalExperience: string(req.TotalExperience),
		Skills:          req.Skills,
		Availability:    req.Availability,
		Deadline:        req.Deadline,
		IsActive:        req.IsActive,
	}
}

type jobPatchRequest struct {
	IsActive *bool   `json:"isActive"`
	Status   *string `json:"status"`
}

// CreateAsAdmin handles POST /v1/jobs.
func (h *JobsHandler) CreateAsAdmin(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.jobs.CreateAsAdmin(r.Context(), auth.FromContext(r.Context()), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(envelope{"job": job}))
}

// CreateAsEmployer handles POST /v1/employer-jobs.
func (h *JobsHandler) CreateAsEmployer(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.jobs.CreateAsEmployer(r.Context(), auth.FromContext(r.Context()), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(envelope{"job": job}))
}

// ListForEmployer handles GET /v1/employer-jobs.
func (h *JobsHandler) ListForEmployer(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireRole(auth.FromContext(r.Context()), models.RoleEmployer); err != nil {
		writeError(w, r, err)
		return
	}
	h.List(w, r)
}

// List handles GET /v1/jobs. Scoping follows the caller's role.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := marketplace.ListInput{
		Search: q.Get("search"),
		SortBy: q.Get("sortBy"),
		Order:  q.Get("order"),
	}

	verr := &marketplace.ValidationError{}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			verr.Add("page", "must be an integer")
		}
		in.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			verr.Add("limit", "must be an integer")
		}
		in.Limit = n
	}
	if v := q.Get("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			verr.Add("isActive", "must be true or false")
		}
		in.IsActive = &b
	}
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.jobs.List(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"jobs": page.Jobs, "pagination": page.Pagination}))
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"job": job}))
}

// Update handles the full replacement PUT.
func (h *JobsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.jobs.Update(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"], req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"job": job}))
}

// Patch accepts isActive and status only; other keys are ignored.
func (h *JobsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req jobPatchRequest
	if err := readChecked(w, r, h.schemas, schema.JobPatch, &req); err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.jobs.Patch(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"], marketplace.JobPatch{
		IsActive: req.IsActive,
		Status:   req.Status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"job": job}))
}

func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Delete(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "job deleted"}))
}
