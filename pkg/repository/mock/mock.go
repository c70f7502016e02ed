// Package mock provides an in-memory implementation of every repository
// interface for tests. It mirrors the SQLite semantics that callers rely on:
// (nil, nil) for missing rows, ErrDuplicate on unique keys, owner-conditioned
// writes and the latest-record rule for verifications.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

var (
	_ repository.UserRepo         = (*Repo)(nil)
	_ repository.JobRepo          = (*Repo)(nil)
	_ repository.ApplicationRepo  = (*Repo)(nil)
	_ repository.VerificationRepo = (*Repo)(nil)
	_ repository.OutboxRepo       = (*Repo)(nil)
)

type jobRow struct {
	job models.Job
	seq int
}

type verificationRow struct {
	v   models.ProviderVerification
	seq int
}

// Repo is safe for concurrent use. Set Err to make every call fail.
type Repo struct {
	mu  sync.Mutex
	Err error
	Now func() time.Time

	seq           int
	users         map[string]models.User
	jobs          map[string]*jobRow
	apps          map[string]models.Application
	verifications []*verificationRow
	outbox        []*models.OutboxMessage
	deadLetters   []models.OutboxMessage
	nextMessageID int64
}

func NewRepo() *Repo {
	return &Repo{
		Now:   time.Now,
		users: make(map[string]models.User),
		jobs:  make(map[string]*jobRow),
		apps:  make(map[string]models.Application),
	}
}

func (m *Repo) now() time.Time { return m.Now().UTC().Truncate(time.Millisecond) }

func (m *Repo) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if _, ok := m.users[u.ID]; ok {
		return repository.ErrDuplicate
	}
	ts := m.now()
	u.Created, u.Updated = ts, ts
	m.users[u.ID] = *u
	return nil
}

func (m *Repo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func copyJob(j models.Job) *models.Job {
	j.Skills = append([]string(nil), j.Skills...)
	return &j
}

func (m *Repo) CreateJob(ctx context.Context, j *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.jobs[j.ID]; ok {
		return repository.ErrDuplicate
	}
	ts := m.now()
	j.Created, j.Updated = ts, ts
	m.seq++
	m.jobs[j.ID] = &jobRow{job: *copyJob(*j), seq: m.seq}
	return nil
}

func (m *Repo) GetJob(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if row, ok := m.jobs[id]; ok {
		return copyJob(row.job), nil
	}
	return nil, nil
}

func (m *Repo) ListJobs(ctx context.Context, q repository.JobQuery) ([]models.Job, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	rows := make([]*jobRow, 0, len(m.jobs))
	for _, row := range m.jobs {
		j := row.job
		if search != "" && !strings.Contains(strings.ToLower(j.Title), search) &&
			!strings.Contains(strings.ToLower(j.Company), search) &&
			!strings.Contains(strings.ToLower(j.Location), search) {
			continue
		}
		if q.IsActive != nil && j.IsActive != *q.IsActive {
			continue
		}
		if q.CreatedBy != "" && j.CreatedBy != q.CreatedBy {
			continue
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(a, b int) bool {
		c := compareJobs(&rows[a].job, &rows[b].job, q.SortBy)
		if c == 0 {
			c = rows[a].seq - rows[b].seq
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	total := int64(len(rows))
	start := max(q.Offset, 0)
	if start > len(rows) {
		start = len(rows)
	}
	end := len(rows)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	out := make([]models.Job, 0, end-start)
	for _, row := range rows[start:end] {
		out = append(out, *copyJob(row.job))
	}
	return out, total, nil
}

func compareJobs(a, b *models.Job, key string) int {
	switch key {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "company":
		return strings.Compare(a.Company, b.Company)
	case "location":
		return strings.Compare(a.Location, b.Location)
	case "updatedAt":
		return a.Updated.Compare(b.Updated)
	case "deadline":
		return compareTimePtr(a.Deadline, b.Deadline)
	case "salaryMin":
		return compareFloatPtr(a.SalaryMin, b.SalaryMin)
	case "salaryMax":
		return compareFloatPtr(a.SalaryMax, b.SalaryMax)
	default:
		return a.Created.Compare(b.Created)
	}
}

// nil sorts first, as NULL does in SQLite.
func compareFloatPtr(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func (m *Repo) UpdateJob(ctx context.Context, j *models.Job, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	row, ok := m.jobs[j.ID]
	if !ok || (owner != "" && row.job.CreatedBy != owner) {
		return false, nil
	}
	cur := &row.job
	cur.Title, cur.Description, cur.Location, cur.Company = j.Title, j.Description, j.Location, j.Company
	cur.SalaryMin, cur.SalaryMax, cur.TotalExperience = j.SalaryMin, j.SalaryMax, j.TotalExperience
	cur.Skills = append([]string(nil), j.Skills...)
	cur.Availability, cur.Deadline, cur.IsActive = j.Availability, j.Deadline, j.IsActive
	cur.Updated = m.now()
	j.Updated = cur.Updated
	return true, nil
}

func (m *Repo) SetJobFlags(ctx context.Context, id, owner string, isActive *bool, status *models.JobStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	row, ok := m.jobs[id]
	if !ok || (owner != "" && row.job.CreatedBy != owner) {
		return false, nil
	}
	if isActive != nil {
		row.job.IsActive = *isActive
	}
	if status != nil {
		row.job.Status = *status
	}
	row.job.Updated = m.now()
	return true, nil
}

func (m *Repo) DeleteJob(ctx context.Context, id, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	row, ok := m.jobs[id]
	if !ok || (owner != "" && row.job.CreatedBy != owner) {
		return false, nil
	}
	delete(m.jobs, id)
	return true, nil
}

func (m *Repo) CreateApplication(ctx context.Context, a *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, existing := range m.apps {
		if existing.ID == a.ID || (existing.JobID == a.JobID && existing.UserID == a.UserID) {
			return repository.ErrDuplicate
		}
	}
	ts := m.now()
	a.AppliedAt, a.Updated = ts, ts
	stored := *a
	stored.Job = nil
	m.apps[a.ID] = stored
	return nil
}

// withJob attaches the live job summary the way the SQL join does.
func (m *Repo) withJob(a models.Application) models.Application {
	a.Job = nil
	if row, ok := m.jobs[a.JobID]; ok {
		j := row.job
		a.Job = &models.JobSummary{ID: j.ID, Title: j.Title, Company: j.Company, Location: j.Location, Deadline: j.Deadline, IsActive: j.IsActive}
	}
	return a
}

func (m *Repo) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	a, ok := m.apps[id]
	if !ok {
		return nil, nil
	}
	a = m.withJob(a)
	return &a, nil
}

func (m *Repo) ListApplicationsByUser(ctx context.Context, userID string) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.Application, 0)
	for _, a := range m.apps {
		if a.UserID == userID {
			out = append(out, m.withJob(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (m *Repo) ListApplications(ctx context.Context) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.Application, 0, len(m.apps))
	for _, a := range m.apps {
		out = append(out, m.withJob(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JobID != out[j].JobID {
			return out[i].JobID < out[j].JobID
		}
		return out[i].AppliedAt.After(out[j].AppliedAt)
	})
	return out, nil
}

func (m *Repo) UpdateApplicationReview(ctx context.Context, id string, status *models.ApplicationStatus, shortlisted *bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	a, ok := m.apps[id]
	if !ok {
		return false, nil
	}
	if status != nil {
		a.Status = *status
	}
	if shortlisted != nil {
		a.Shortlisted = *shortlisted
	}
	a.Updated = m.now()
	m.apps[id] = a
	return true, nil
}

func (m *Repo) UpdateApplicationContent(ctx context.Context, id, owner string, coverLetter, resume *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	a, ok := m.apps[id]
	if !ok || (owner != "" && a.UserID != owner) {
		return false, nil
	}
	if coverLetter != nil {
		a.CoverLetter = *coverLetter
	}
	if resume != nil {
		a.Resume = *resume
	}
	a.Updated = m.now()
	m.apps[id] = a
	return true, nil
}

func (m *Repo) DeleteApplication(ctx context.Context, id, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	a, ok := m.apps[id]
	if !ok || (owner != "" && a.UserID != owner) {
		return false, nil
	}
	delete(m.apps, id)
	return true, nil
}

func copyVerification(v models.ProviderVerification) *models.ProviderVerification {
	docs := make(map[string]string, len(v.Documents))
	for k, ref := range v.Documents {
		docs[k] = ref
	}
	v.Documents = docs
	return &v
}

func (m *Repo) CreateVerification(ctx context.Context, v *models.ProviderVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, row := range m.verifications {
		if row.v.ID == v.ID {
			return repository.ErrDuplicate
		}
	}
	if v.Created.IsZero() {
		v.Created = m.now()
	}
	m.seq++
	m.verifications = append(m.verifications, &verificationRow{v: *copyVerification(*v), seq: m.seq})
	return nil
}

func (m *Repo) GetVerification(ctx context.Context, id string) (*models.ProviderVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, row := range m.verifications {
		if row.v.ID == id {
			return copyVerification(row.v), nil
		}
	}
	return nil, nil
}

func (m *Repo) LatestVerificationByEmail(ctx context.Context, email string) (*models.ProviderVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var latest *verificationRow
	for _, row := range m.verifications {
		if row.v.ContactEmail != email {
			continue
		}
		if latest == nil || !row.v.Created.Before(latest.v.Created) {
			latest = row
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyVerification(latest.v), nil
}

func (m *Repo) ListVerifications(ctx context.Context, status *models.VerificationStatus) ([]models.ProviderVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	rows := make([]*verificationRow, 0, len(m.verifications))
	for _, row := range m.verifications {
		if status == nil || row.v.Status == *status {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].v.Created.Equal(rows[j].v.Created) {
			return rows[i].v.Created.After(rows[j].v.Created)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]models.ProviderVerification, 0, len(rows))
	for _, row := range rows {
		out = append(out, *copyVerification(row.v))
	}
	return out, nil
}

func (m *Repo) DecideVerification(ctx context.Context, id string, status models.VerificationStatus, decidedBy string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for _, row := range m.verifications {
		if row.v.ID == id {
			at := at.UTC().Truncate(time.Millisecond)
			row.v.Status, row.v.DecidedBy, row.v.DecidedAt = status, decidedBy, &at
			return true, nil
		}
	}
	return false, nil
}

func (m *Repo) Enqueue(ctx context.Context, msg *models.OutboxMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.nextMessageID++
	stored := *msg
	stored.ID = m.nextMessageID
	stored.Status = "queued"
	if stored.MaxAttempts == 0 {
		stored.MaxAttempts = 5
	}
	stored.Created, stored.Updated = m.now(), m.now()
	m.outbox = append(m.outbox, &stored)
	return stored.ID, nil
}

func (m *Repo) FetchNext(ctx context.Context) (*models.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	now := m.now()
	for _, msg := range m.outbox {
		if msg.Status != "queued" && msg.Status != "retry" {
			continue
		}
		if msg.NextTryAt != nil && msg.NextTryAt.After(now) {
			continue
		}
		msg.Status = "processing"
		msg.Updated = now
		out := *msg
		return &out, nil
	}
	return nil, nil
}

func (m *Repo) UpdateMessage(ctx context.Context, msg *models.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, stored := range m.outbox {
		if stored.ID == msg.ID {
			stored.Status, stored.Attempts, stored.NextTryAt, stored.LastError = msg.Status, msg.Attempts, msg.NextTryAt, msg.LastError
			stored.Updated = m.now()
		}
	}
	return nil
}

func (m *Repo) MoveToDeadLetter(ctx context.Context, msg *models.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i, stored := range m.outbox {
		if stored.ID == msg.ID {
			m.deadLetters = append(m.deadLetters, *msg)
			m.outbox = append(m.outbox[:i], m.outbox[i+1:]...)
			break
		}
	}
	return nil
}

// Messages returns a snapshot of the outbox.
func (m *Repo) Messages() []models.OutboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OutboxMessage, 0, len(m.outbox))
	for _, msg := range m.outbox {
		out = append(out, *msg)
	}
	return out
}

// DeadLetters returns a snapshot of dead-lettered messages.
func (m *Repo) DeadLetters() []models.OutboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OutboxMessage(nil), m.deadLetters...)
}
