package api

import (
	"net/http"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/files"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/internal/schema"
	"github.com/gorilla/mux"
)

// maxVerificationFiles bounds the documents of one submission.
const maxVerificationFiles = 5

type VerificationHandler struct {
	gate     *marketplace.Gate
	store    files.Store
	schemas  *schema.Registry
	maxBytes int64
}

func NewVerificationHandler(gate *marketplace.Gate, store files.Store, schemas *schema.Registry, maxBytes int64) *VerificationHandler {
	if maxBytes <= 0 {
		maxBytes = files.DefaultMaxBytes
	}
	return &VerificationHandler{gate: gate, store: store, schemas: schemas, maxBytes: maxBytes}
}

type decisionRequest struct {
	Status string `json:"status"`
}

// Submit handles the multipart POST /v1/provider-verification. Each file
// field is named after its document slot.
func (h *VerificationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if err := auth.RequireRole(p, models.RoleEmployer); err != nil {
		writeError(w, r, err)
		return
	}
	if err := parseMultipart(w, r, maxVerificationFiles*h.maxBytes+maxMultipartMemory); err != nil {
		writeError(w, r, err)
		return
	}

	count := 0
	for _, fhs := range r.MultipartForm.File {
		count += len(fhs)
	}
	if count > maxVerificationFiles {
		writeError(w, r, badRequest("documents", "at most 5 files may be uploaded"))
		return
	}

	docs := make(map[string]string, count)
	var saved []string
	for slot, fhs := range r.MultipartForm.File {
		if len(fhs) > 1 {
			discard(r.Context(), h.store, saved...)
			writeError(w, r, badRequest(slot, "only one file per document"))
			return
		}
		ref, err := saveUpload(r.Context(), h.store, files.DocumentPolicy(h.maxBytes), slot, fhs[0])
		if err != nil {
			discard(r.Context(), h.store, saved...)
			writeError(w, r, err)
			return
		}
		saved = append(saved, ref)
		docs[slot] = ref
	}

	v, err := h.gate.Submit(r.Context(), p, marketplace.SubmitInput{
		ProviderType: r.FormValue("providerType"),
		ContactName:  r.FormValue("contactName"),
		ContactEmail: r.FormValue("contactEmail"),
		Documents:    docs,
	})
	if err != nil {
		discard(r.Context(), h.store, saved...)
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ok(envelope{
		"message": "verification submitted",
		"id":      v.ID,
	}))
}

// List returns the caller's gate state for employers and every submission
// for admins.
func (h *VerificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if p.IsAdmin() {
		list, err := h.gate.List(r.Context(), p, r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ok(envelope{"verifications": list}))
		return
	}

	state, err := h.gate.StateOf(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"status": state}))
}

// Decide handles PATCH /v1/provider-verification/{id}.
func (h *VerificationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if err := auth.RequireAdmin(p); err != nil {
		writeError(w, r, err)
		return
	}

	var req decisionRequest
	if err := readChecked(w, r, h.schemas, schema.VerificationDecision, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.gate.Decide(r.Context(), p, mux.Vars(r)["id"], req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"status": v.Status, "verification": v}))
}
