package marketplace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/internal/outbox"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

// ApplicationService owns applications: one per (job, applicant), created
// only against active jobs, reviewed by admins.
type ApplicationService struct {
	apps   repository.ApplicationRepo
	jobs   repository.JobRepo
	users  repository.UserRepo
	notify Notifier
	logger *slog.Logger
}

func NewApplicationService(apps repository.ApplicationRepo, jobs repository.JobRepo, users repository.UserRepo, notify Notifier, logger *slog.Logger) *ApplicationService {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &ApplicationService{apps: apps, jobs: jobs, users: users, notify: orNop(notify), logger: logger}
}

// ApplyInput is an application. Resume is a stored file reference obtained
// before the call.
type ApplyInput struct {
	JobID         string
	Name          string
	Email         string
	ContactNumber string
	CoverLetter   string
	Resume        string
}

// Apply creates a Pending application. Uniqueness of (job, applicant) is
// enforced by the store, so concurrent duplicates cannot both succeed.
func (s *ApplicationService) Apply(ctx context.Context, p auth.Principal, in ApplyInput) (*models.Application, error) {
	if err := auth.RequireSession(p); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	jobID, err := parseID("jobId", in.JobID)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			verr.Fields = append(verr.Fields, ve.Fields...)
		}
	}
	resume := strings.TrimSpace(in.Resume)
	if resume == "" {
		verr.Add("resume", "is required")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, unexpected("get job", err)
	}
	if job == nil || !job.IsActive {
		return nil, ErrNotFound
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		u, err := s.users.GetUserByID(ctx, p.SubjectID)
		if err != nil {
			return nil, unexpected("get applicant", err)
		}
		if u != nil {
			name = u.Name
		}
	}
	email := normalizeEmail(in.Email)
	if email == "" {
		email = p.Email
	}

	a := &models.Application{
		ID:            newID(),
		JobID:         job.ID,
		UserID:        p.SubjectID,
		Name:          name,
		Email:         email,
		ContactNumber: strings.TrimSpace(in.ContactNumber),
		CoverLetter:   strings.TrimSpace(in.CoverLetter),
		Resume:        resume,
		Status:        models.ApplicationPending,
		JobTitle:      job.Title,
		Company:       job.Company,
	}
	if err := s.apps.CreateApplication(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyApplied
		}
		return nil, unexpected("create application", err)
	}

	s.logger.Info("application created", "id", a.ID, "job", a.JobID, "user", a.UserID)
	s.notify.Notify(ctx, outbox.TopicApplicationCreated, map[string]any{
		"id": a.ID, "jobId": a.JobID, "userId": a.UserID, "jobTitle": a.JobTitle, "company": a.Company,
	})
	return a, nil
}

// ListMine returns the caller's applications with their jobs joined in.
func (s *ApplicationService) ListMine(ctx context.Context, p auth.Principal) ([]models.Application, error) {
	if err := auth.RequireSession(p); err != nil {
		return nil, err
	}
	out, err := s.apps.ListApplicationsByUser(ctx, p.SubjectID)
	if err != nil {
		return nil, unexpected("list applications", err)
	}
	return out, nil
}

// ListAll returns every application grouped by job, for admin review.
func (s *ApplicationService) ListAll(ctx context.Context, p auth.Principal) ([]models.JobApplications, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	apps, err := s.apps.ListApplications(ctx)
	if err != nil {
		return nil, unexpected("list applications", err)
	}
	return groupByJob(apps), nil
}

// groupByJob keeps the first-seen order of jobs.
func groupByJob(apps []models.Application) []models.JobApplications {
	out := make([]models.JobApplications, 0)
	index := make(map[string]int)
	for _, a := range apps {
		i, ok := index[a.JobID]
		if !ok {
			g := models.JobApplications{JobID: a.JobID, JobTitle: a.JobTitle, Company: a.Company}
			if a.Job != nil {
				g.JobTitle, g.Company = a.Job.Title, a.Job.Company
			}
			out = append(out, g)
			i = len(out) - 1
			index[a.JobID] = i
		}
		out[i].Applications = append(out[i].Applications, a)
	}
	return out
}

// Get returns one application to its owner or an admin.
func (s *ApplicationService) Get(ctx context.Context, p auth.Principal, id string) (*models.Application, error) {
	a, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanAccessApplication(p, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ReviewInput is an admin review update.
type ReviewInput struct {
	Status      *string
	Shortlisted *bool
}

// Review sets status and/or the shortlisted flag. Any status may follow any
// other.
func (s *ApplicationService) Review(ctx context.Context, p auth.Principal, id string, in ReviewInput) (*models.Application, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if in.Status == nil && in.Shortlisted == nil {
		return nil, invalid("body", "at least one of status, shortlisted is required")
	}

	var status *models.ApplicationStatus
	if in.Status != nil {
		st, err := models.ParseApplicationStatus(strings.TrimSpace(*in.Status))
		if err != nil {
			return nil, invalid("status", "must be one of Pending, Interview, Shortlisted, Rejected, Accepted")
		}
		status = &st
	}

	before, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.apps.UpdateApplicationReview(ctx, before.ID, status, in.Shortlisted)
	if err != nil {
		return nil, unexpected("review application", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	after, err := s.load(ctx, p, before.ID)
	if err != nil {
		return nil, err
	}
	if after.Status != before.Status {
		s.notify.Notify(ctx, outbox.TopicApplicationStatusChanged, map[string]any{
			"id": after.ID, "jobId": after.JobID, "userId": after.UserID, "from": before.Status, "to": after.Status,
		})
	}
	return after, nil
}

// Shortlist moves an application to Shortlisted.
func (s *ApplicationService) Shortlist(ctx context.Context, p auth.Principal, id string) (*models.Application, error) {
	status := string(models.ApplicationShortlisted)
	shortlisted := true
	return s.Review(ctx, p, id, ReviewInput{Status: &status, Shortlisted: &shortlisted})
}

// ContentInput is the applicant's own edit. Status is deliberately absent:
// applicants cannot move their own application.
type ContentInput struct {
	CoverLetter *string
	Resume      *string
}

// UpdateContent lets the applicant replace the cover letter and/or resume.
func (s *ApplicationService) UpdateContent(ctx context.Context, p auth.Principal, id string, in ContentInput) (*models.Application, error) {
	if err := auth.RequireSession(p); err != nil {
		return nil, err
	}

	a, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !auth.OwnsApplication(p, a) {
		return nil, ErrForbidden
	}

	if in.CoverLetter == nil && in.Resume == nil {
		return nil, invalid("body", "at least one of coverLetter, resume is required")
	}
	var coverLetter, resume *string
	if in.CoverLetter != nil {
		c := strings.TrimSpace(*in.CoverLetter)
		coverLetter = &c
	}
	if in.Resume != nil {
		r := strings.TrimSpace(*in.Resume)
		if r == "" {
			return nil, invalid("resume", "must not be empty")
		}
		resume = &r
	}

	ok, err := s.apps.UpdateApplicationContent(ctx, a.ID, p.SubjectID, coverLetter, resume)
	if err != nil {
		return nil, unexpected("update application", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	return s.load(ctx, p, a.ID)
}

// Delete removes an application for its owner or an admin.
func (s *ApplicationService) Delete(ctx context.Context, p auth.Principal, id string) error {
	a, err := s.load(ctx, p, id)
	if err != nil {
		return err
	}
	if err := auth.CanAccessApplication(p, a); err != nil {
		return err
	}

	owner := p.SubjectID
	if p.IsAdmin() {
		owner = ""
	}
	ok, err := s.apps.DeleteApplication(ctx, a.ID, owner)
	if err != nil {
		return unexpected("delete application", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *ApplicationService) load(ctx context.Context, p auth.Principal, id string) (*models.Application, error) {
	id, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireSession(p); err != nil {
		return nil, err
	}
	a, err := s.apps.GetApplication(ctx, id)
	if err != nil {
		return nil, unexpected("get application", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}
