package marketplace_test

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/models"
)

func TestJobs_CreateRequiresApprovedGate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	if _, err := e.jobs.CreateAsEmployer(ctx, employer, validJob()); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("no verification: got %v", err)
	}
	v := e.submit(t, employer)
	if _, err := e.jobs.CreateAsEmployer(ctx, employer, validJob()); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("pending verification: got %v", err)
	}
	if _, err := e.gate.Decide(ctx, admin, v.ID, "rejected"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.jobs.CreateAsEmployer(ctx, employer, validJob()); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("rejected verification: got %v", err)
	}

	page, err := e.jobs.List(ctx, admin, marketplace.ListInput{})
	if err != nil || page.Pagination.Total != 0 {
		t.Fatalf("jobs persisted without approval: %+v, %v", page, err)
	}

	if _, err := e.jobs.CreateAsEmployer(ctx, seeker, validJob()); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("jobseeker: got %v", err)
	}
	if _, err := e.jobs.CreateAsEmployer(ctx, anon, validJob()); !errors.Is(err, marketplace.ErrUnauthorized) {
		t.Fatalf("anonymous: got %v", err)
	}
}

func TestJobs_EmployerRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.approve(t, employer)

	in := validJob()
	in.TotalExperience = "3"
	in.Availability = "Full-time"
	created, err := e.jobs.CreateAsEmployer(ctx, employer, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.IsActive || created.Status != models.JobPending || created.CreatedBy != employer.SubjectID {
		t.Fatalf("unexpected defaults: %+v", created)
	}

	got, err := e.jobs.Get(ctx, employer, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != in.Title || got.Description != in.Description || got.Location != in.Location || got.Company != in.Company {
		t.Fatalf("text fields differ: %+v", got)
	}
	if got.SalaryMin == nil || *got.SalaryMin != 5000 || got.SalaryMax == nil || *got.SalaryMax != 9000 {
		t.Fatalf("salary: %v %v", got.SalaryMin, got.SalaryMax)
	}
	if got.TotalExperience == nil || *got.TotalExperience != 3 || got.Availability != "Full-time" {
		t.Fatalf("experience/availability: %+v", got)
	}
	if want := []string{"Go", "SQL"}; !slices.Equal(got.Skills, want) {
		t.Fatalf("skills: got %q, want %q", got.Skills, want)
	}
	if want := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC); got.Deadline == nil || !got.Deadline.Equal(want) {
		t.Fatalf("deadline: %v", got.Deadline)
	}
	if topics := e.rec.topics(); !slices.Contains(topics, "job.created") {
		t.Fatalf("no job.created event in %v", topics)
	}
}

func TestJobs_AdminCreate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	in := validJob()
	in.Deadline = ""
	in.Skills = nil
	in.Availability = ""
	j, err := e.jobs.CreateAsAdmin(ctx, admin, in)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if j.IsActive {
		t.Fatal("admin jobs start inactive")
	}
	if j.Availability != models.DefaultAvailability || j.Skills == nil || len(j.Skills) != 0 {
		t.Fatalf("defaults: %+v", j)
	}

	in.IsActive = ptr(true)
	j, err = e.jobs.CreateAsAdmin(ctx, admin, in)
	if err != nil || !j.IsActive {
		t.Fatalf("explicit isActive: %+v, %v", j, err)
	}

	e.approve(t, employer)
	if _, err := e.jobs.CreateAsAdmin(ctx, employer, in); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("employer on admin path: got %v", err)
	}
}

func TestJobs_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.approve(t, employer)

	tests := []struct {
		name   string
		modify func(*marketplace.JobInput)
		want   []string
	}{
		{"all required missing", func(in *marketplace.JobInput) {
			in.Title, in.Description, in.Location, in.Company = "", " ", "", "\t"
		}, []string{"title", "description", "location", "company"}},
		{"salary range", func(in *marketplace.JobInput) {
			in.SalaryMin, in.SalaryMax = "10000", "9000"
		}, []string{"salaryMin"}},
		{"not numbers", func(in *marketplace.JobInput) {
			in.SalaryMin, in.SalaryMax, in.TotalExperience = "lots", "NaN", "-1"
		}, []string{"salaryMin", "salaryMax", "totalExperience"}},
		{"empty skills", func(in *marketplace.JobInput) {
			in.Skills = []string{" ", ""}
		}, []string{"skills"}},
		{"deadline required for employers", func(in *marketplace.JobInput) {
			in.Deadline = ""
		}, []string{"deadline"}},
		{"bad deadline", func(in *marketplace.JobInput) {
			in.Deadline = "next friday"
		}, []string{"deadline"}},
		{"everything at once", func(in *marketplace.JobInput) {
			in.Title, in.Company, in.SalaryMin, in.Deadline = "", "", "x", ""
		}, []string{"title", "company", "salaryMin", "deadline"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validJob()
			tt.modify(&in)
			_, err := e.jobs.CreateAsEmployer(ctx, employer, in)
			if got := fields(t, err); !slices.Equal(got, tt.want) {
				t.Fatalf("fields: got %v, want %v", got, tt.want)
			}
		})
	}

	page, _ := e.jobs.List(ctx, admin, marketplace.ListInput{})
	if page.Pagination.Total != 0 {
		t.Fatalf("invalid input was persisted: %d jobs", page.Pagination.Total)
	}
}

func TestJobs_Visibility(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.approve(t, employer)
	e.approve(t, rival)

	hidden := validJob()
	hidden.IsActive = ptr(false)
	j, err := e.jobs.CreateAsEmployer(ctx, employer, hidden)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		p    auth.Principal
		want error
	}{
		{"owner", employer, nil},
		{"admin", admin, nil},
		{"other employer", rival, marketplace.ErrNotFound},
		{"jobseeker", seeker, marketplace.ErrNotFound},
		{"anonymous", anon, marketplace.ErrNotFound},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.jobs.Get(ctx, tt.p, j.ID); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := e.jobs.Get(ctx, anon, "not-a-uuid"); fields(t, err)[0] != "id" {
		t.Fatalf("malformed id: got %v", err)
	}
	if _, err := e.jobs.Get(ctx, admin, "99999999-9999-9999-9999-999999999999"); !errors.Is(err, marketplace.ErrNotFound) {
		t.Fatalf("unknown id: got %v", err)
	}
}

func TestJobs_ListScoping(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.approve(t, employer)
	e.approve(t, rival)

	for i, seed := range []struct {
		p      auth.Principal
		title  string
		active bool
	}{
		{employer, "Go Developer", true},
		{employer, "Rust Developer", false},
		{rival, "Designer", true},
		{rival, "Data Analyst", true},
	} {
		in := validJob()
		in.Title = seed.title
		in.IsActive = ptr(seed.active)
		if _, err := e.jobs.CreateAsEmployer(ctx, seed.p, in); err != nil {
			t.Fatalf("job %d: %v", i, err)
		}
	}

	tests := []struct {
		name  string
		p     auth.Principal
		in    marketplace.ListInput
		total int64
	}{
		{"public sees active only", anon, marketplace.ListInput{}, 3},
		{"public cannot ask for inactive", seeker, marketplace.ListInput{IsActive: ptr(false)}, 3},
		{"employer sees own", employer, marketplace.ListInput{}, 2},
		{"employer filters own", employer, marketplace.ListInput{IsActive: ptr(false)}, 1},
		{"admin sees all", admin, marketplace.ListInput{}, 4},
		{"admin filters", admin, marketplace.ListInput{IsActive: ptr(true)}, 3},
		{"search", anon, marketplace.ListInput{Search: "developer"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := e.jobs.List(ctx, tt.p, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if page.Pagination.Total != tt.total || int64(len(page.Jobs)) != tt.total {
				t.Fatalf("total %d (%d rows), want %d", page.Pagination.Total, len(page.Jobs), tt.total)
			}
		})
	}
}

func TestJobs_ListPaging(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for _, title := range []string{"delta", "alpha", "echo", "charlie", "bravo"} {
		in := validJob()
		in.Title = title
		in.IsActive = ptr(true)
		if _, err := e.jobs.CreateAsAdmin(ctx, admin, in); err != nil {
			t.Fatal(err)
		}
	}

	page, err := e.jobs.List(ctx, anon, marketplace.ListInput{SortBy: "title", Order: "ASC", Page: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := marketplace.Pagination{Page: 2, Limit: 2, Total: 5, TotalPages: 3}
	if page.Pagination != want {
		t.Fatalf("pagination: got %+v, want %+v", page.Pagination, want)
	}
	if len(page.Jobs) != 2 || page.Jobs[0].Title != "charlie" || page.Jobs[1].Title != "delta" {
		t.Fatalf("page 2: %+v", page.Jobs)
	}

	page, err = e.jobs.List(ctx, anon, marketplace.ListInput{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.Page != 1 || page.Pagination.Limit != marketplace.DefaultPageSize || page.Pagination.TotalPages != 1 {
		t.Fatalf("defaults: %+v", page.Pagination)
	}

	page, err = e.jobs.List(ctx, anon, marketplace.ListInput{Page: 9})
	if err != nil || len(page.Jobs) != 0 || page.Pagination.Total != 5 {
		t.Fatalf("past the end: %+v, %v", page, err)
	}

	_, err = e.jobs.List(ctx, anon, marketplace.ListInput{SortBy: "password", Order: "sideways", Page: -1, Limit: marketplace.MaxPageSize + 1})
	if got, want := fields(t, err), []string{"sortBy", "order", "page", "limit"}; !slices.Equal(got, want) {
		t.Fatalf("bad listing input: got %v, want %v", got, want)
	}

	_, err = e.jobs.List(ctx, anon, marketplace.ListInput{Page: math.MaxInt / 10, Limit: marketplace.MaxPageSize})
	if got := fields(t, err); !slices.Equal(got, []string{"page"}) {
		t.Fatalf("offset overflow: got %v", got)
	}
}

func TestJobs_Update(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.approve(t, employer)
	e.approve(t, rival)
	j := e.activeJob(t, employer)

	in := validJob()
	in.Title = "Staff Engineer"
	in.SalaryMin, in.SalaryMax = "9000", "12000"
	updated, err := e.jobs.Update(ctx, employer, j.ID, in)
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "Staff Engineer" || *updated.SalaryMin != 9000 {
		t.Fatalf("not updated: %+v", updated)
	}

	in.SalaryMin = "20000"
	if _, err := e.jobs.Update(ctx, employer, j.ID, in); fields(t, err)[0] != "salaryMin" {
		t.Fatalf("range on update: got %v", err)
	}
	if _, err := e.jobs.Update(ctx, rival, j.ID, validJob()); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("non-owner update: got %v", err)
	}
	if _, err := e.jobs.Update(ctx, seeker, j.ID, validJob()); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("jobseeker update: got %v", err)
	}

	// Owners need a current approval; admins do not.
	e.submit(t, employer)
	if _, err := e.jobs.Update(ctx, employer, j.ID, validJob()); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("update after gate reset: got %v", err)
	}
	noDeadline := validJob()
	noDeadline.Deadline = ""
	if _, err := e.jobs.Update(ctx, admin, j.ID, noDeadline); err != nil {
		t.Fatalf("admin update: %v", err)
	}

	got, _ := e.jobs.Get(ctx, admin, j.ID)
	if got.Title != validJob().Title || got.Deadline != nil {
		t.Fatalf("admin update not stored: %+v", got)
	}
}

func TestJobs_Patch(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.approve(t, employer)
	e.approve(t, rival)
	j := e.activeJob(t, employer)

	for i := range 2 {
		got, err := e.jobs.Patch(ctx, employer, j.ID, marketplace.JobPatch{IsActive: ptr(false)})
		if err != nil {
			t.Fatalf("patch %d: %v", i, err)
		}
		if got.IsActive {
			t.Fatalf("patch %d: still active", i)
		}
	}

	if _, err := e.jobs.Patch(ctx, employer, j.ID, marketplace.JobPatch{Status: ptr("approved")}); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("employer status: got %v", err)
	}
	if _, err := e.jobs.Patch(ctx, rival, j.ID, marketplace.JobPatch{IsActive: ptr(true)}); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("non-owner patch: got %v", err)
	}
	if _, err := e.jobs.Patch(ctx, admin, j.ID, marketplace.JobPatch{}); fields(t, err)[0] != "body" {
		t.Fatalf("empty patch: got %v", err)
	}
	if _, err := e.jobs.Patch(ctx, admin, j.ID, marketplace.JobPatch{Status: ptr("archived")}); fields(t, err)[0] != "status" {
		t.Fatalf("bad status: got %v", err)
	}

	// Any status may follow any other.
	for _, st := range []string{"approved", "rejected", "pending", "approved"} {
		got, err := e.jobs.Patch(ctx, admin, j.ID, marketplace.JobPatch{Status: ptr(st)})
		if err != nil {
			t.Fatalf("status %s: %v", st, err)
		}
		if string(got.Status) != st {
			t.Fatalf("status: got %s, want %s", got.Status, st)
		}
	}
}

func TestJobs_Delete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.approve(t, employer)
	e.approve(t, rival)
	j := e.activeJob(t, employer)

	if err := e.jobs.Delete(ctx, rival, j.ID); !errors.Is(err, marketplace.ErrForbidden) {
		t.Fatalf("non-owner delete: got %v", err)
	}
	if err := e.jobs.Delete(ctx, anon, j.ID); !errors.Is(err, marketplace.ErrUnauthorized) {
		t.Fatalf("anonymous delete: got %v", err)
	}
	if err := e.jobs.Delete(ctx, employer, j.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := e.jobs.Delete(ctx, employer, j.ID); !errors.Is(err, marketplace.ErrNotFound) {
		t.Fatalf("second delete: got %v", err)
	}

	k := e.activeJob(t, rival)
	if err := e.jobs.Delete(ctx, admin, k.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if topics := e.rec.topics(); !slices.Contains(topics, "job.deleted") {
		t.Fatalf("no job.deleted event in %v", topics)
	}
}

func TestJobs_StorageFailureIsUnexpected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.repo.Err = errors.New("database is locked")

	in := validJob()
	_, err := e.jobs.CreateAsAdmin(ctx, admin, in)
	var uerr *marketplace.UnexpectedError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnexpectedError, got %v", err)
	}
	if _, err := e.jobs.List(ctx, anon, marketplace.ListInput{}); !errors.As(err, &uerr) {
		t.Fatalf("list: expected UnexpectedError, got %v", err)
	}
}
