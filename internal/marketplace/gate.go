package marketplace

import (
	"context"
	"io"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/internal/outbox"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

// Gate tracks provider verification submissions. An employer may publish
// jobs only while the latest submission for their email is approved.
type Gate struct {
	repo   repository.VerificationRepo
	notify Notifier
	logger *slog.Logger
	now    func() time.Time
}

func NewGate(repo repository.VerificationRepo, notify Notifier, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Gate{repo: repo, notify: orNop(notify), logger: logger, now: time.Now}
}

// SubmitInput is a verification submission. Documents maps a slot name from
// models.DocumentSlots to a stored file reference.
type SubmitInput struct {
	ProviderType string
	ContactName  string
	ContactEmail string
	Documents    map[string]string
}

// Submit records a new pending verification. Resubmissions are allowed; the
// newest record decides the gate state. The contact email must be the
// caller's own login email, since that is the key the gate is read by.
func (g *Gate) Submit(ctx context.Context, p auth.Principal, in SubmitInput) (*models.ProviderVerification, error) {
	if err := auth.RequireRole(p, models.RoleEmployer); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	providerType, err := models.ParseProviderType(strings.TrimSpace(in.ProviderType))
	if err != nil {
		verr.Add("providerType", "must be one of company, individual")
	}
	name := strings.TrimSpace(in.ContactName)
	if name == "" {
		verr.Add("contactName", "is required")
	}
	email := normalizeEmail(in.ContactEmail)
	if email == "" {
		verr.Add("contactEmail", "is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		verr.Add("contactEmail", "is not a valid email address")
	}
	docs := make(map[string]string, len(in.Documents))
	for slot, ref := range in.Documents {
		if !slices.Contains(models.DocumentSlots, slot) {
			verr.Add(slot, "is not a known document slot")
			continue
		}
		if ref = strings.TrimSpace(ref); ref != "" {
			docs[slot] = ref
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if email != normalizeEmail(p.Email) {
		return nil, ErrForbidden
	}

	v := &models.ProviderVerification{
		ID:           newID(),
		ProviderType: providerType,
		ContactName:  name,
		ContactEmail: email,
		Documents:    docs,
		Status:       models.VerificationPending,
		SubmittedBy:  p.SubjectID,
		Created:      g.now().UTC(),
	}
	if err := g.repo.CreateVerification(ctx, v); err != nil {
		return nil, unexpected("submit verification", err)
	}

	g.notify.Notify(ctx, outbox.TopicVerificationSubmitted, map[string]any{
		"id": v.ID, "contactEmail": v.ContactEmail, "providerType": v.ProviderType,
	})
	return v, nil
}

// Decide approves or rejects a record. Approval is checked by the job
// operations at write time, so a decision never touches existing jobs.
func (g *Gate) Decide(ctx context.Context, p auth.Principal, id, status string) (*models.ProviderVerification, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	id, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	st, err := models.ParseVerificationStatus(strings.TrimSpace(status))
	if err != nil || st == models.VerificationPending {
		return nil, invalid("status", "must be one of approved, rejected")
	}

	ok, err := g.repo.DecideVerification(ctx, id, st, p.SubjectID, g.now())
	if err != nil {
		return nil, unexpected("decide verification", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	v, err := g.repo.GetVerification(ctx, id)
	if err != nil {
		return nil, unexpected("get verification", err)
	}
	if v == nil {
		return nil, ErrNotFound
	}

	g.logger.Info("verification decided", "id", v.ID, "status", v.Status, "by", p.SubjectID)
	g.notify.Notify(ctx, outbox.TopicVerificationDecided, map[string]any{
		"id": v.ID, "contactEmail": v.ContactEmail, "status": v.Status,
	})
	return v, nil
}

// CurrentState derives the gate state from the newest record for email.
func (g *Gate) CurrentState(ctx context.Context, email string) (models.GateState, error) {
	email = normalizeEmail(email)
	if email == "" {
		return models.GateNone, nil
	}

	v, err := g.repo.LatestVerificationByEmail(ctx, email)
	if err != nil {
		return "", unexpected("gate state", err)
	}
	if v == nil {
		return models.GateNone, nil
	}

	switch v.Status {
	case models.VerificationApproved:
		return models.GateApproved, nil
	case models.VerificationRejected:
		return models.GateRejected, nil
	default:
		return models.GatePending, nil
	}
}

// StateOf returns the caller's own gate state.
func (g *Gate) StateOf(ctx context.Context, p auth.Principal) (models.GateState, error) {
	if err := auth.RequireRole(p, models.RoleEmployer); err != nil {
		return "", err
	}
	return g.CurrentState(ctx, p.Email)
}

// List returns every submission, newest first, optionally filtered by status.
func (g *Gate) List(ctx context.Context, p auth.Principal, status string) ([]models.ProviderVerification, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	var filter *models.VerificationStatus
	if status = strings.TrimSpace(status); status != "" {
		st, err := models.ParseVerificationStatus(status)
		if err != nil {
			return nil, invalid("status", "must be one of pending, approved, rejected")
		}
		filter = &st
	}

	out, err := g.repo.ListVerifications(ctx, filter)
	if err != nil {
		return nil, unexpected("list verifications", err)
	}
	return out, nil
}

// requireApproved fails with ErrForbidden unless the employer's gate is approved.
func (g *Gate) requireApproved(ctx context.Context, p auth.Principal) error {
	state, err := g.CurrentState(ctx, p.Email)
	if err != nil {
		return err
	}
	if state != models.GateApproved {
		return ErrForbidden
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
