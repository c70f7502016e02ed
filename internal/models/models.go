// Package models holds the marketplace entities shared by the storage,
// domain and transport layers.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is the caller role carried in every identity token.
type Role string

const (
	RoleJobseeker  Role = "jobseeker"
	RoleEmployer   Role = "employer"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// ParseRole converts a raw string to a Role, returning an error for unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleJobseeker, RoleEmployer, RoleAdmin, RoleSuperadmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsAdmin reports whether the role carries moderation authority.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperadmin }

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Created      time.Time `json:"createdAt"`
	Updated      time.Time `json:"updatedAt"`
}

// JobStatus is the moderation state of a job posting.
type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobApproved JobStatus = "approved"
	JobRejected JobStatus = "rejected"
)

func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case JobPending, JobApproved, JobRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// DefaultAvailability is stored when a job is created without one.
const DefaultAvailability = "Flexible"

type Job struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	Company         string     `json:"company"`
	SalaryMin       *float64   `json:"salaryMin,omitempty"`
	SalaryMax       *float64   `json:"salaryMax,omitempty"`
	TotalExperience *float64   `json:"totalExperience,omitempty"`
	Skills          []string   `json:"skills"`
	Availability    string     `json:"availability"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	IsActive        bool       `json:"isActive"`
	Status          JobStatus  `json:"status"`
	CreatedBy       string     `json:"createdBy"`
	Created         time.Time  `json:"createdAt"`
	Updated         time.Time  `json:"updatedAt"`
}

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const (
	ApplicationPending     ApplicationStatus = "Pending"
	ApplicationInterview   ApplicationStatus = "Interview"
	ApplicationShortlisted ApplicationStatus = "Shortlisted"
	ApplicationRejected    ApplicationStatus = "Rejected"
	ApplicationAccepted    ApplicationStatus = "Accepted"
)

func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(s)
	switch st {
	case ApplicationPending, ApplicationInterview, ApplicationShortlisted, ApplicationRejected, ApplicationAccepted:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

type Application struct {
	ID            string            `json:"id"`
	JobID         string            `json:"jobId"`
	UserID        string            `json:"userId"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	ContactNumber string            `json:"contactNumber,omitempty"`
	CoverLetter   string            `json:"coverLetter,omitempty"`
	Resume        string            `json:"resume"`
	Status        ApplicationStatus `json:"status"`
	Shortlisted   bool              `json:"shortlisted"`
	// JobTitle and Company are captured when the application is made.
	JobTitle  string    `json:"jobTitle"`
	Company   string    `json:"company"`
	AppliedAt time.Time `json:"appliedAt"`
	Updated   time.Time `json:"updatedAt"`

	Job *JobSummary `json:"job,omitempty"`
}

// JobSummary is the live job data joined onto an application listing. It is
// nil when the job has since been deleted.
type JobSummary struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Company  string     `json:"company"`
	Location string     `json:"location"`
	Deadline *time.Time `json:"deadline,omitempty"`
	IsActive bool       `json:"isActive"`
}

// JobApplications groups applications under the job they target.
type JobApplications struct {
	JobID        string        `json:"jobId"`
	JobTitle     string        `json:"jobTitle"`
	Company      string        `json:"company"`
	Applications []Application `json:"applications"`
}

type ProviderType string

const (
	ProviderCompany    ProviderType = "company"
	ProviderIndividual ProviderType = "individual"
)

func ParseProviderType(s string) (ProviderType, error) {
	pt := ProviderType(s)
	switch pt {
	case ProviderCompany, ProviderIndividual:
		return pt, nil
	}
	return "", fmt.Errorf("unknown provider type %q", s)
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

func ParseVerificationStatus(s string) (VerificationStatus, error) {
	st := VerificationStatus(s)
	switch st {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown verification status %q", s)
}

// GateState is the derived posting right of an employer.
type GateState string

const (
	GateNone     GateState = "none"
	GatePending  GateState = "pending"
	GateApproved GateState = "approved"
	GateRejected GateState = "rejected"
)

// Document slots accepted on a verification submission.
const (
	DocCompanyRegistration = "companyRegistration"
	DocTaxID               = "taxId"
	DocAddressProof        = "addressProof"
	DocAuthorizedPersonID  = "authorizedPersonId"
	DocExperienceLetter    = "experienceLetter"
)

// DocumentSlots lists the document slots in display order.
var DocumentSlots = []string{
	DocCompanyRegistration,
	DocTaxID,
	DocAddressProof,
	DocAuthorizedPersonID,
	DocExperienceLetter,
}

type ProviderVerification struct {
	ID           string             `json:"id"`
	ProviderType ProviderType       `json:"providerType"`
	ContactName  string             `json:"contactName"`
	ContactEmail string             `json:"contactEmail"`
	Documents    map[string]string  `json:"documents"`
	Status       VerificationStatus `json:"status"`
	SubmittedBy  string             `json:"submittedBy,omitempty"`
	DecidedBy    string             `json:"decidedBy,omitempty"`
	DecidedAt    *time.Time         `json:"decidedAt,omitempty"`
	Created      time.Time          `json:"createdAt"`
}

// OutboxMessage is a domain event waiting for delivery.
type OutboxMessage struct {
	ID          int64           `json:"id"`
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
