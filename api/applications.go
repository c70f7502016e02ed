package api

import (
	"net/http"
	"strings"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/files"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/schema"
	"github.com/gorilla/mux"
)

type ApplicationsHandler struct {
	apps     *marketplace.ApplicationService
	store    files.Store
	schemas  *schema.Registry
	maxBytes int64
}

func NewApplicationsHandler(apps *marketplace.ApplicationService, store files.Store, schemas *schema.Registry, maxBytes int64) *ApplicationsHandler {
	if maxBytes <= 0 {
		maxBytes = files.DefaultMaxBytes
	}
	return &ApplicationsHandler{apps: apps, store: store, schemas: schemas, maxBytes: maxBytes}
}

type reviewRequest struct {
	Status      *string `json:"status"`
	Shortlisted *bool   `json:"shortlisted"`
}

type contentRequest struct {
	CoverLetter *string `json:"coverLetter"`
}

// Apply handles the multipart POST /v1/applications. The resume is stored
// first and removed again if the application is rejected.
func (h *ApplicationsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if err := auth.RequireSession(p); err != nil {
		writeError(w, r, err)
		return
	}
	if err := parseMultipart(w, r, h.maxBytes+maxMultipartMemory); err != nil {
		writeError(w, r, err)
		return
	}

	var resume string
	if fh := firstFile(r, "resume"); fh != nil {
		ref, err := saveUpload(r.Context(), h.store, files.ResumePolicy(h.maxBytes), "resume", fh)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resume = ref
	}

	app, err := h.apps.Apply(r.Context(), p, marketplace.ApplyInput{
		JobID:         r.FormValue("jobId"),
		Name:          r.FormValue("name"),
		Email:         r.FormValue("email"),
		ContactNumber: r.FormValue("contactNumber"),
		CoverLetter:   r.FormValue("coverLetter"),
		Resume:        resume,
	})
	if err != nil {
		discard(r.Context(), h.store, resume)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(envelope{"application": app}))
}

// ListMine handles GET /v1/applications.
func (h *ApplicationsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	apps, err := h.apps.ListMine(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"applications": apps}))
}

// ListAll handles GET /v1/admin/applications.
func (h *ApplicationsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	groups, err := h.apps.ListAll(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"jobs": groups}))
}

func (h *ApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.apps.Get(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"application": app}))
}

// Patch routes admins to the review update and everyone else to the
// applicant's content update. Applicants cannot change status here.
func (h *ApplicationsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if p.IsAdmin() {
		h.review(w, r, p)
		return
	}
	h.updateContent(w, r, p)
}

func (h *ApplicationsHandler) review(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req reviewRequest
	if err := readChecked(w, r, h.schemas, schema.ApplicationReview, &req); err != nil {
		writeError(w, r, err)
		return
	}

	app, err := h.apps.Review(r.Context(), p, mux.Vars(r)["id"], marketplace.ReviewInput{
		Status:      req.Status,
		Shortlisted: req.Shortlisted,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"application": app}))
}

// updateContent accepts JSON with coverLetter, or multipart with coverLetter
// and a replacement resume file.
func (h *ApplicationsHandler) updateContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := auth.RequireSession(p); err != nil {
		writeError(w, r, err)
		return
	}

	var in marketplace.ContentInput
	var resume string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := parseMultipart(w, r, h.maxBytes+maxMultipartMemory); err != nil {
			writeError(w, r, err)
			return
		}
		if vs, found := r.MultipartForm.Value["coverLetter"]; found && len(vs) > 0 {
			in.CoverLetter = &vs[0]
		}
		if fh := firstFile(r, "resume"); fh != nil {
			ref, err := saveUpload(r.Context(), h.store, files.ResumePolicy(h.maxBytes), "resume", fh)
			if err != nil {
				writeError(w, r, err)
				return
			}
			resume = ref
			in.Resume = &resume
		}
	} else {
		var req contentRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		in.CoverLetter = req.CoverLetter
	}

	var previous string
	if resume != "" {
		if cur, err := h.apps.Get(r.Context(), p, mux.Vars(r)["id"]); err == nil {
			previous = cur.Resume
		}
	}

	app, err := h.apps.UpdateContent(r.Context(), p, mux.Vars(r)["id"], in)
	if err != nil {
		discard(r.Context(), h.store, resume)
		writeError(w, r, err)
		return
	}
	if previous != "" && previous != app.Resume {
		discard(r.Context(), h.store, previous)
	}
	writeJSON(w, http.StatusOK, ok(envelope{"application": app}))
}

// Shortlist handles POST /v1/applications/{id}/shortlist.
func (h *ApplicationsHandler) Shortlist(w http.ResponseWriter, r *http.Request) {
	app, err := h.apps.Shortlist(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"application": app}))
}

// Delete removes the application and its stored resume.
func (h *ApplicationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	app, err := h.apps.Get(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.apps.Delete(r.Context(), p, app.ID); err != nil {
		writeError(w, r, err)
		return
	}
	discard(r.Context(), h.store, app.Resume)
	writeJSON(w, http.StatusOK, ok(envelope{"message": "application deleted"}))
}
