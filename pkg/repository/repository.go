package repository

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/jobmarket/internal/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Getters return (nil, nil) when the row does not exist. Conditional writes
// report whether a row matched; owner == "" drops the ownership condition.

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// JobQuery filters and pages a job listing.
type JobQuery struct {
	Search    string
	IsActive  *bool
	CreatedBy string
	SortBy    string
	Desc      bool
	Limit     int
	Offset    int
}

type JobRepo interface {
	CreateJob(ctx context.Context, j *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, q JobQuery) ([]models.Job, int64, error)
	UpdateJob(ctx context.Context, j *models.Job, owner string) (bool, error)
	SetJobFlags(ctx context.Context, id, owner string, isActive *bool, status *models.JobStatus) (bool, error)
	DeleteJob(ctx context.Context, id, owner string) (bool, error)
}

type ApplicationRepo interface {
	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	ListApplicationsByUser(ctx context.Context, userID string) ([]models.Application, error)
	ListApplications(ctx context.Context) ([]models.Application, error)
	UpdateApplicationReview(ctx context.Context, id string, status *models.ApplicationStatus, shortlisted *bool) (bool, error)
	UpdateApplicationContent(ctx context.Context, id, owner string, coverLetter, resume *string) (bool, error)
	DeleteApplication(ctx context.Context, id, owner string) (bool, error)
}

type VerificationRepo interface {
	CreateVerification(ctx context.Context, v *models.ProviderVerification) error
	GetVerification(ctx context.Context, id string) (*models.ProviderVerification, error)
	LatestVerificationByEmail(ctx context.Context, email string) (*models.ProviderVerification, error)
	ListVerifications(ctx context.Context, status *models.VerificationStatus) ([]models.ProviderVerification, error)
	DecideVerification(ctx context.Context, id string, status models.VerificationStatus, decidedBy string, at time.Time) (bool, error)
}

type OutboxRepo interface {
	Enqueue(ctx context.Context, m *models.OutboxMessage) (int64, error)
	FetchNext(ctx context.Context) (*models.OutboxMessage, error)
	UpdateMessage(ctx context.Context, m *models.OutboxMessage) error
	MoveToDeadLetter(ctx context.Context, m *models.OutboxMessage) error
}
