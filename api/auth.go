package api

import (
	"net/http"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/models"
)

type AuthHandler struct {
	accounts *auth.Accounts
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(accounts *auth.Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	role := models.RoleJobseeker
	if req.Role != "" {
		parsed, err := models.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, badRequest("role", "must be jobseeker or employer"))
			return
		}
		role = parsed
	}

	u, token, err := h.accounts.SignUp(r.Context(), req.Name, req.Email, req.Password, role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ok(envelope{"token": token, "user": u}))
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, badRequest("body", "email and password are required"))
		return
	}

	u, token, err := h.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ok(envelope{"token": token, "user": u}))
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, signout is client-side (just delete token)
	writeJSON(w, http.StatusOK, ok(envelope{"message": "signed out"}))
}

// Me returns the resolved identity of the caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if err := auth.RequireSession(p); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ok(envelope{"user": envelope{
		"id":    p.SubjectID,
		"email": p.Email,
		"role":  p.Role,
	}}))
}

// CreateAdmin lets a superadmin add an admin account.
func (h *AuthHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.accounts.CreateAdmin(r.Context(), auth.FromContext(r.Context()), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ok(envelope{"user": u}))
}
