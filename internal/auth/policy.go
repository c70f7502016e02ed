package auth

import "github.com/garnizeh/jobmarket/internal/models"

// deny picks the error for a failed check: callers without a session get
// ErrUnauthorized, everyone else ErrForbidden. Neither says which rule failed.
func deny(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	return ErrForbidden
}

// RequireSession fails closed for anonymous callers.
func RequireSession(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	return nil
}

// RequireRole passes when the caller holds one of roles.
func RequireRole(p Principal, roles ...models.Role) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

// RequireAdmin passes for admin and superadmin.
func RequireAdmin(p Principal) error {
	return RequireRole(p, models.RoleAdmin, models.RoleSuperadmin)
}

// OwnsJob reports whether p is the employer recorded as the job's creator.
func OwnsJob(p Principal, j *models.Job) bool {
	return p.Is(models.RoleEmployer) && j != nil && j.CreatedBy == p.SubjectID
}

// CanViewJob allows admins everything, owners their own jobs and everyone
// else active jobs only.
func CanViewJob(p Principal, j *models.Job) bool {
	if j == nil {
		return false
	}
	return p.IsAdmin() || j.IsActive || OwnsJob(p, j)
}

// CanManageJob covers update and delete. Gate approval for owners is checked
// separately by the caller at write time.
func CanManageJob(p Principal, j *models.Job) error {
	if p.IsAdmin() || OwnsJob(p, j) {
		return nil
	}
	return deny(p)
}

// OwnsApplication reports whether p applied with this application.
func OwnsApplication(p Principal, a *models.Application) bool {
	return p.Authenticated() && a != nil && a.UserID == p.SubjectID
}

// CanAccessApplication covers read and delete.
func CanAccessApplication(p Principal, a *models.Application) error {
	if p.IsAdmin() || OwnsApplication(p, a) {
		return nil
	}
	return deny(p)
}
