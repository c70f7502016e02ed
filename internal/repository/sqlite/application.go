package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

const applicationColumns = `a.id, a.job_id, a.user_id, a.name, a.email, a.contact_number, a.cover_letter, a.resume, a.status, a.shortlisted, a.job_title, a.company, a.applied_at, a.updated`

// applicationJoin pulls the live job next to each application; the job
// columns are NULL once the job has been deleted.
const applicationJoin = `SELECT ` + applicationColumns + `, j.id, j.title, j.company, j.location, j.deadline, j.is_active
	FROM applications a LEFT JOIN jobs j ON j.id = a.job_id`

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		a           models.Application
		status      string
		shortlisted int
		appliedAt   int64
		updated     int64
		jobID       sql.NullString
		jobTitle    sql.NullString
		jobCompany  sql.NullString
		jobLocation sql.NullString
		jobDeadline sql.NullInt64
		jobActive   sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.JobID, &a.UserID, &a.Name, &a.Email, &a.ContactNumber, &a.CoverLetter, &a.Resume,
		&status, &shortlisted, &a.JobTitle, &a.Company, &appliedAt, &updated,
		&jobID, &jobTitle, &jobCompany, &jobLocation, &jobDeadline, &jobActive); err != nil {
		return nil, err
	}

	a.Status = models.ApplicationStatus(status)
	a.Shortlisted = shortlisted == 1
	a.AppliedAt, a.Updated = fromMillis(appliedAt), fromMillis(updated)
	if jobID.Valid {
		a.Job = &models.JobSummary{
			ID:       jobID.String,
			Title:    jobTitle.String,
			Company:  jobCompany.String,
			Location: jobLocation.String,
			Deadline: timePtr(jobDeadline),
			IsActive: jobActive.Int64 == 1,
		}
	}

	return &a, nil
}

// CreateApplication inserts a new application. The unique index on
// (job_id, user_id) turns a second apply into repository.ErrDuplicate.
func (r *SQLiteRepo) CreateApplication(ctx context.Context, a *models.Application) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	ts := now()
	_, err := r.conn.Exec(ctx, `INSERT INTO applications (id, job_id, user_id, name, email, contact_number, cover_letter, resume, status, shortlisted, job_title, company, applied_at, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.JobID, a.UserID, a.Name, a.Email, a.ContactNumber, a.CoverLetter, a.Resume,
		string(a.Status), boolInt(a.Shortlisted), a.JobTitle, a.Company, ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert application: %w", err)
	}
	a.AppliedAt, a.Updated = fromMillis(ts), fromMillis(ts)

	return nil
}

func (r *SQLiteRepo) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := r.conn.QueryRow(ctx, applicationJoin+` WHERE a.id = ?`, id)
	a, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepo) ListApplicationsByUser(ctx context.Context, userID string) ([]models.Application, error) {
	return r.listApplications(ctx, applicationJoin+` WHERE a.user_id = ? ORDER BY a.applied_at DESC`, userID)
}

// ListApplications returns every application ordered by job so callers can group them.
func (r *SQLiteRepo) ListApplications(ctx context.Context) ([]models.Application, error) {
	return r.listApplications(ctx, applicationJoin+` ORDER BY a.job_id, a.applied_at DESC`)
}

func (r *SQLiteRepo) listApplications(ctx context.Context, query string, args ...any) ([]models.Application, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	out := make([]models.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}

	return out, nil
}

func (r *SQLiteRepo) UpdateApplicationReview(ctx context.Context, id string, status *models.ApplicationStatus, shortlisted *bool) (bool, error) {
	sets := []string{"updated = ?"}
	args := []any{now()}
	if status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*status))
	}
	if shortlisted != nil {
		sets = append(sets, "shortlisted = ?")
		args = append(args, boolInt(*shortlisted))
	}
	args = append(args, id)

	res, err := r.conn.Exec(ctx, `UPDATE applications SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("update application review: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepo) UpdateApplicationContent(ctx context.Context, id, owner string, coverLetter, resume *string) (bool, error) {
	sets := []string{"updated = ?"}
	args := []any{now()}
	if coverLetter != nil {
		sets = append(sets, "cover_letter = ?")
		args = append(args, *coverLetter)
	}
	if resume != nil {
		sets = append(sets, "resume = ?")
		args = append(args, *resume)
	}

	query := `UPDATE applications SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	if owner != "" {
		query += ` AND user_id = ?`
		args = append(args, owner)
	}

	res, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update application content: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepo) DeleteApplication(ctx context.Context, id, owner string) (bool, error) {
	query := `DELETE FROM applications WHERE id = ?`
	args := []any{id}
	if owner != "" {
		query += ` AND user_id = ?`
		args = append(args, owner)
	}

	res, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete application: %w", err)
	}
	return affected(res)
}
