package marketplace

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/garnizeh/jobmarket/internal/models"
)

// JobInput carries the writable job fields as received. Numeric fields and
// the deadline are raw text and are coerced here; an empty string means the
// field was not supplied. Skills is nil when not supplied.
type JobInput struct {
	Title           string
	Description     string
	Location        string
	Company         string
	SalaryMin       string
	SalaryMax       string
	TotalExperience string
	Skills          []string
	Availability    string
	Deadline        string
	IsActive        *bool
}

// jobFields is a validated JobInput.
type jobFields struct {
	title, description, location, company string
	salaryMin, salaryMax, experience      *float64
	skills                                []string
	availability                          string
	deadline                              *time.Time
}

var deadlineLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04"}

// validateJob checks every field and reports all failures together.
func validateJob(in JobInput, requireDeadline bool) (*jobFields, error) {
	verr := &ValidationError{}
	f := &jobFields{
		title:       strings.TrimSpace(in.Title),
		description: strings.TrimSpace(in.Description),
		location:    strings.TrimSpace(in.Location),
		company:     strings.TrimSpace(in.Company),
	}

	for _, req := range []struct{ name, value string }{
		{"title", f.title},
		{"description", f.description},
		{"location", f.location},
		{"company", f.company},
	} {
		if req.value == "" {
			verr.Add(req.name, "is required")
		}
	}

	f.salaryMin = parseNumber(verr, "salaryMin", in.SalaryMin)
	f.salaryMax = parseNumber(verr, "salaryMax", in.SalaryMax)
	f.experience = parseNumber(verr, "totalExperience", in.TotalExperience)
	if f.salaryMin != nil && f.salaryMax != nil && *f.salaryMin > *f.salaryMax {
		verr.Add("salaryMin", "must not exceed salaryMax")
	}

	if in.Skills != nil {
		f.skills = normalizeSkills(in.Skills)
		if len(f.skills) == 0 {
			verr.Add("skills", "must contain at least one non-empty skill")
		}
	} else {
		f.skills = []string{}
	}

	f.availability = strings.TrimSpace(in.Availability)
	if f.availability == "" {
		f.availability = models.DefaultAvailability
	}

	if d := strings.TrimSpace(in.Deadline); d != "" {
		t, ok := parseDeadline(d)
		if !ok {
			verr.Add("deadline", "is not a valid date")
		} else {
			f.deadline = &t
		}
	} else if requireDeadline {
		verr.Add("deadline", "is required")
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// parseNumber coerces a non-negative number; salaries and experience share the rule.
func parseNumber(verr *ValidationError, field, raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		verr.Add(field, "must be a number")
		return nil
	}
	if v < 0 {
		verr.Add(field, "must be greater than or equal to 0")
		return nil
	}
	return &v
}

// normalizeSkills trims, drops empties and removes duplicates keeping first occurrence.
func normalizeSkills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func parseDeadline(s string) (time.Time, bool) {
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// apply copies validated fields onto j.
func (f *jobFields) apply(j *models.Job) {
	j.Title, j.Description, j.Location, j.Company = f.title, f.description, f.location, f.company
	j.SalaryMin, j.SalaryMax, j.TotalExperience = f.salaryMin, f.salaryMax, f.experience
	j.Skills = f.skills
	j.Availability = f.availability
	j.Deadline = f.deadline
}
