package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

const verificationColumns = `id, provider_type, contact_name, contact_email, documents, status, submitted_by, decided_by, decided_at, created_at`

func scanVerification(row rowScanner) (*models.ProviderVerification, error) {
	var (
		v            models.ProviderVerification
		providerType string
		documents    string
		status       string
		decidedBy    sql.NullString
		decidedAt    sql.NullInt64
		created      int64
	)
	if err := row.Scan(&v.ID, &providerType, &v.ContactName, &v.ContactEmail, &documents, &status, &v.SubmittedBy, &decidedBy, &decidedAt, &created); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(documents), &v.Documents); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	if v.Documents == nil {
		v.Documents = map[string]string{}
	}
	v.ProviderType = models.ProviderType(providerType)
	v.Status = models.VerificationStatus(status)
	v.DecidedBy = decidedBy.String
	v.DecidedAt = timePtr(decidedAt)
	v.Created = fromMillis(created)

	return &v, nil
}

func (r *SQLiteRepo) CreateVerification(ctx context.Context, v *models.ProviderVerification) error {
	if v == nil {
		return fmt.Errorf("verification is nil")
	}

	docs := v.Documents
	if docs == nil {
		docs = map[string]string{}
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}

	created := v.Created
	if created.IsZero() {
		created = fromMillis(now())
	}
	_, err = r.conn.Exec(ctx, `INSERT INTO provider_verifications (id, provider_type, contact_name, contact_email, documents, status, submitted_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, string(v.ProviderType), v.ContactName, v.ContactEmail, string(b), string(v.Status), v.SubmittedBy, created.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	v.Created = created

	return nil
}

func (r *SQLiteRepo) GetVerification(ctx context.Context, id string) (*models.ProviderVerification, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+verificationColumns+` FROM provider_verifications WHERE id = ?`, id)
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get verification: %w", err)
	}
	return v, nil
}

// LatestVerificationByEmail selects the record with max(created_at) for the
// email. Records sharing the same millisecond fall back to insertion order.
func (r *SQLiteRepo) LatestVerificationByEmail(ctx context.Context, email string) (*models.ProviderVerification, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+verificationColumns+` FROM provider_verifications
		WHERE contact_email = ? AND created_at = (SELECT MAX(created_at) FROM provider_verifications WHERE contact_email = ?)
		ORDER BY rowid DESC LIMIT 1`, email, email)
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest verification: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepo) ListVerifications(ctx context.Context, status *models.VerificationStatus) ([]models.ProviderVerification, error) {
	query := `SELECT ` + verificationColumns + ` FROM provider_verifications`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	out := make([]models.ProviderVerification, 0)
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}

	return out, nil
}

func (r *SQLiteRepo) DecideVerification(ctx context.Context, id string, status models.VerificationStatus, decidedBy string, at time.Time) (bool, error) {
	res, err := r.conn.Exec(ctx, `UPDATE provider_verifications SET status = ?, decided_by = ?, decided_at = ? WHERE id = ?`,
		string(status), decidedBy, at.UTC().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("decide verification: %w", err)
	}
	return affected(res)
}
