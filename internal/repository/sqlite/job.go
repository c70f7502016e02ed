package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

const jobColumns = `id, title, description, location, company, salary_min, salary_max, total_experience, skills, availability, deadline, is_active, status, created_by, created, updated`

// sortColumns maps the public sort keys onto columns.
var sortColumns = map[string]string{
	"createdAt": "created",
	"updatedAt": "updated",
	"title":     "title",
	"company":   "company",
	"location":  "location",
	"deadline":  "deadline",
	"salaryMin": "salary_min",
	"salaryMax": "salary_max",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		j          models.Job
		salaryMin  sql.NullFloat64
		salaryMax  sql.NullFloat64
		experience sql.NullFloat64
		skills     string
		deadline   sql.NullInt64
		isActive   int
		status     string
		created    int64
		updated    int64
	)
	if err := row.Scan(&j.ID, &j.Title, &j.Description, &j.Location, &j.Company, &salaryMin, &salaryMax, &experience,
		&skills, &j.Availability, &deadline, &isActive, &status, &j.CreatedBy, &created, &updated); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(skills), &j.Skills); err != nil {
		return nil, fmt.Errorf("decode skills: %w", err)
	}
	if j.Skills == nil {
		j.Skills = []string{}
	}
	j.SalaryMin, j.SalaryMax, j.TotalExperience = floatPtr(salaryMin), floatPtr(salaryMax), floatPtr(experience)
	j.Deadline = timePtr(deadline)
	j.IsActive = isActive == 1
	j.Status = models.JobStatus(status)
	j.Created, j.Updated = fromMillis(created), fromMillis(updated)

	return &j, nil
}

func encodeSkills(skills []string) (string, error) {
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("encode skills: %w", err)
	}
	return string(b), nil
}

func (r *SQLiteRepo) CreateJob(ctx context.Context, j *models.Job) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}

	skills, err := encodeSkills(j.Skills)
	if err != nil {
		return err
	}

	ts := now()
	_, err = r.conn.Exec(ctx, `INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Title, j.Description, j.Location, j.Company, nullFloat(j.SalaryMin), nullFloat(j.SalaryMax), nullFloat(j.TotalExperience),
		skills, j.Availability, nullMillis(j.Deadline), boolInt(j.IsActive), string(j.Status), j.CreatedBy, ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert job: %w", err)
	}
	j.Created, j.Updated = fromMillis(ts), fromMillis(ts)

	return nil
}

func (r *SQLiteRepo) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *SQLiteRepo) ListJobs(ctx context.Context, q repository.JobQuery) ([]models.Job, int64, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR company LIKE ? ESCAPE '\' OR location LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if q.IsActive != nil {
		where = append(where, `is_active = ?`)
		args = append(args, boolInt(*q.IsActive))
	}
	if q.CreatedBy != "" {
		where = append(where, `created_by = ?`)
		args = append(args, q.CreatedBy)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM jobs`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "created"
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + clause + ` ORDER BY ` + col + ` ` + dir + `, rowid ` + dir + ` LIMIT ? OFFSET ?`
	rows, err := r.conn.QueryRows(ctx, query, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := make([]models.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate jobs: %w", err)
	}

	return out, total, nil
}

// UpdateJob rewrites the editable content of a job in one statement.
func (r *SQLiteRepo) UpdateJob(ctx context.Context, j *models.Job, owner string) (bool, error) {
	if j == nil {
		return false, fmt.Errorf("job is nil")
	}

	skills, err := encodeSkills(j.Skills)
	if err != nil {
		return false, err
	}

	query := `UPDATE jobs SET title = ?, description = ?, location = ?, company = ?, salary_min = ?, salary_max = ?, total_experience = ?,
		skills = ?, availability = ?, deadline = ?, is_active = ?, updated = ? WHERE id = ?`
	ts := now()
	args := []any{j.Title, j.Description, j.Location, j.Company, nullFloat(j.SalaryMin), nullFloat(j.SalaryMax), nullFloat(j.TotalExperience),
		skills, j.Availability, nullMillis(j.Deadline), boolInt(j.IsActive), ts, j.ID}
	if owner != "" {
		query += ` AND created_by = ?`
		args = append(args, owner)
	}

	res, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update job: %w", err)
	}
	j.Updated = fromMillis(ts)

	return affected(res)
}

func (r *SQLiteRepo) SetJobFlags(ctx context.Context, id, owner string, isActive *bool, status *models.JobStatus) (bool, error) {
	sets := []string{"updated = ?"}
	args := []any{now()}
	if isActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolInt(*isActive))
	}
	if status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*status))
	}

	query := `UPDATE jobs SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	if owner != "" {
		query += ` AND created_by = ?`
		args = append(args, owner)
	}

	res, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("set job flags: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepo) DeleteJob(ctx context.Context, id, owner string) (bool, error) {
	query := `DELETE FROM jobs WHERE id = ?`
	args := []any{id}
	if owner != "" {
		query += ` AND created_by = ?`
		args = append(args, owner)
	}

	res, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	return affected(res)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
