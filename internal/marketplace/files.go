package marketplace

import (
	"context"
	"path"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/pkg/repository"
)

// FileAccess decides who may download a stored upload. Resumes are readable
// by the applicant who attached them, verification documents by the
// employer who submitted them, and everything by admins.
type FileAccess struct {
	apps   repository.ApplicationRepo
	verifs repository.VerificationRepo
}

func NewFileAccess(apps repository.ApplicationRepo, verifs repository.VerificationRepo) *FileAccess {
	return &FileAccess{apps: apps, verifs: verifs}
}

// Authorize reports whether p may read the stored file called name. Names
// are matched against the last element of the recorded file reference.
func (f *FileAccess) Authorize(ctx context.Context, p auth.Principal, name string) error {
	if err := auth.RequireSession(p); err != nil {
		return err
	}
	if p.IsAdmin() {
		return nil
	}
	name = path.Base(name)

	apps, err := f.apps.ListApplicationsByUser(ctx, p.SubjectID)
	if err != nil {
		return unexpected("list applications", err)
	}
	for _, a := range apps {
		if a.Resume != "" && path.Base(a.Resume) == name {
			return nil
		}
	}

	verifs, err := f.verifs.ListVerifications(ctx, nil)
	if err != nil {
		return unexpected("list verifications", err)
	}
	for _, v := range verifs {
		if v.SubmittedBy != p.SubjectID {
			continue
		}
		for _, ref := range v.Documents {
			if path.Base(ref) == name {
				return nil
			}
		}
	}
	return ErrForbidden
}
