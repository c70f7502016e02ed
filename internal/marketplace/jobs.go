package marketplace

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/internal/outbox"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

// Listing defaults and bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// JobService owns the job lifecycle: creation by approved employers and
// admins, visibility, updates and deletion.
type JobService struct {
	jobs   repository.JobRepo
	gate   *Gate
	notify Notifier
	logger *slog.Logger
}

func NewJobService(jobs repository.JobRepo, gate *Gate, notify Notifier, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &JobService{jobs: jobs, gate: gate, notify: orNop(notify), logger: logger}
}

// CreateAsEmployer publishes a job for a verified employer. New jobs start
// pending review and active unless the input says otherwise.
func (s *JobService) CreateAsEmployer(ctx context.Context, p auth.Principal, in JobInput) (*models.Job, error) {
	if err := auth.RequireRole(p, models.RoleEmployer); err != nil {
		return nil, err
	}
	if err := s.gate.requireApproved(ctx, p); err != nil {
		return nil, err
	}
	return s.create(ctx, p, in, true, true)
}

// CreateAsAdmin creates a job without the verification gate. Admin jobs
// start inactive.
func (s *JobService) CreateAsAdmin(ctx context.Context, p auth.Principal, in JobInput) (*models.Job, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	return s.create(ctx, p, in, false, false)
}

func (s *JobService) create(ctx context.Context, p auth.Principal, in JobInput, requireDeadline, defaultActive bool) (*models.Job, error) {
	f, err := validateJob(in, requireDeadline)
	if err != nil {
		return nil, err
	}

	j := &models.Job{
		ID:        newID(),
		IsActive:  defaultActive,
		Status:    models.JobPending,
		CreatedBy: p.SubjectID,
	}
	f.apply(j)
	if in.IsActive != nil {
		j.IsActive = *in.IsActive
	}

	if err := s.jobs.CreateJob(ctx, j); err != nil {
		return nil, unexpected("create job", err)
	}

	s.logger.Info("job created", "id", j.ID, "by", p.SubjectID, "role", p.Role)
	s.notify.Notify(ctx, outbox.TopicJobCreated, jobEvent(j))
	return j, nil
}

// Get returns a job the caller may see. Jobs hidden from the caller are
// reported as not found.
func (s *JobService) Get(ctx context.Context, p auth.Principal, id string) (*models.Job, error) {
	j, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewJob(p, j) {
		return nil, ErrNotFound
	}
	return j, nil
}

// ListInput is a listing request. Zero values select the defaults.
type ListInput struct {
	Search   string
	IsActive *bool
	Page     int
	Limit    int
	SortBy   string
	Order    string
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

type JobPage struct {
	Jobs       []models.Job `json:"jobs"`
	Pagination Pagination   `json:"pagination"`
}

var sortKeys = map[string]bool{
	"createdAt": true, "updatedAt": true, "title": true, "company": true,
	"location": true, "deadline": true, "salaryMin": true, "salaryMax": true,
}

// List pages through jobs. Employers only ever see their own jobs; anyone
// who is neither admin nor employer sees active jobs only.
func (s *JobService) List(ctx context.Context, p auth.Principal, in ListInput) (*JobPage, error) {
	verr := &ValidationError{}
	sortBy := strings.TrimSpace(in.SortBy)
	if sortBy == "" {
		sortBy = "createdAt"
	} else if !sortKeys[sortBy] {
		verr.Add("sortBy", "is not a sortable field")
	}
	desc := true
	switch strings.ToLower(strings.TrimSpace(in.Order)) {
	case "", "desc":
	case "asc":
		desc = false
	default:
		verr.Add("order", "must be asc or desc")
	}
	if in.Page < 0 {
		verr.Add("page", "must be greater than 0")
	}
	if in.Limit < 0 || in.Limit > MaxPageSize {
		verr.Add("limit", "must be between 1 and %d", MaxPageSize)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	page, limit := in.Page, in.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	if page > math.MaxInt/limit {
		return nil, invalid("page", "is too large")
	}

	q := repository.JobQuery{
		Search:   in.Search,
		IsActive: in.IsActive,
		SortBy:   sortBy,
		Desc:     desc,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}
	switch {
	case p.IsAdmin():
	case p.Is(models.RoleEmployer):
		q.CreatedBy = p.SubjectID
	default:
		active := true
		q.IsActive = &active
	}

	jobs, total, err := s.jobs.ListJobs(ctx, q)
	if err != nil {
		return nil, unexpected("list jobs", err)
	}

	return &JobPage{
		Jobs: jobs,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

// Update replaces the editable content of a job. Owners must still hold an
// approved gate at the time of the write.
func (s *JobService) Update(ctx context.Context, p auth.Principal, id string, in JobInput) (*models.Job, error) {
	j, err := s.loadManaged(ctx, p, id)
	if err != nil {
		return nil, err
	}

	f, err := validateJob(in, !p.IsAdmin())
	if err != nil {
		return nil, err
	}
	f.apply(j)
	if in.IsActive != nil {
		j.IsActive = *in.IsActive
	}

	ok, err := s.jobs.UpdateJob(ctx, j, ownerFilter(p))
	if err != nil {
		return nil, unexpected("update job", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	s.notify.Notify(ctx, outbox.TopicJobUpdated, jobEvent(j))
	return j, nil
}

// JobPatch holds the only two fields a partial update may touch.
type JobPatch struct {
	IsActive *bool
	Status   *string
}

// Patch toggles isActive and/or sets the moderation status. Only admins may
// set status; owners may toggle isActive on their own jobs.
func (s *JobService) Patch(ctx context.Context, p auth.Principal, id string, in JobPatch) (*models.Job, error) {
	if in.IsActive == nil && in.Status == nil {
		return nil, invalid("body", "at least one of isActive, status is required")
	}

	var status *models.JobStatus
	if in.Status != nil {
		st, err := models.ParseJobStatus(strings.TrimSpace(*in.Status))
		if err != nil {
			return nil, invalid("status", "must be one of pending, approved, rejected")
		}
		status = &st
	}

	j, err := s.loadManaged(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if status != nil && !p.IsAdmin() {
		return nil, ErrForbidden
	}

	ok, err := s.jobs.SetJobFlags(ctx, j.ID, ownerFilter(p), in.IsActive, status)
	if err != nil {
		return nil, unexpected("patch job", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	updated, err := s.load(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, outbox.TopicJobUpdated, jobEvent(updated))
	return updated, nil
}

// Delete removes a job permanently.
func (s *JobService) Delete(ctx context.Context, p auth.Principal, id string) error {
	id, err := parseID("id", id)
	if err != nil {
		return err
	}
	if err := auth.RequireSession(p); err != nil {
		return err
	}

	j, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return unexpected("get job", err)
	}
	if j == nil {
		return ErrNotFound
	}
	if err := auth.CanManageJob(p, j); err != nil {
		return err
	}

	ok, err := s.jobs.DeleteJob(ctx, id, ownerFilter(p))
	if err != nil {
		return unexpected("delete job", err)
	}
	if !ok {
		return ErrNotFound
	}

	s.logger.Info("job deleted", "id", id, "by", p.SubjectID)
	s.notify.Notify(ctx, outbox.TopicJobDeleted, map[string]any{"id": id, "deletedBy": p.SubjectID})
	return nil
}

// loadManaged fetches a job the caller may modify; owners are re-checked
// against the gate.
func (s *JobService) loadManaged(ctx context.Context, p auth.Principal, id string) (*models.Job, error) {
	id, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireSession(p); err != nil {
		return nil, err
	}

	j, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, unexpected("get job", err)
	}
	if j == nil {
		return nil, ErrNotFound
	}
	if err := auth.CanManageJob(p, j); err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		if err := s.gate.requireApproved(ctx, p); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (s *JobService) load(ctx context.Context, id string) (*models.Job, error) {
	id, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	j, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, unexpected("get job", err)
	}
	if j == nil {
		return nil, ErrNotFound
	}
	return j, nil
}

// ownerFilter restricts conditional writes to the caller's rows unless the
// caller is an admin.
func ownerFilter(p auth.Principal) string {
	if p.IsAdmin() {
		return ""
	}
	return p.SubjectID
}

func jobEvent(j *models.Job) map[string]any {
	return map[string]any{
		"id":        j.ID,
		"title":     j.Title,
		"company":   j.Company,
		"isActive":  j.IsActive,
		"status":    j.Status,
		"createdBy": j.CreatedBy,
		"at":        time.Now().UTC(),
	}
}
