package sanitize

import (
	"strings"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// Candidate returns a sanitized copy of c and a note for every optional field
// that was dropped because it could not be made safe. The input is not
// modified.
func Candidate(c model.Candidate) (model.Candidate, []string) {
	out := c.Clone()
	out.SourceID = Line(out.SourceID)
	if out.RawConfidence < 0 {
		out.RawConfidence = 0
	}
	if out.RawConfidence > 100 {
		out.RawConfidence = 100
	}

	var notes []string
	if out.Job != nil {
		notes = append(notes, job(out.Job)...)
	}
	if out.Contact != nil {
		notes = append(notes, contact(out.Contact)...)
	}
	return out, notes
}

func job(j *model.Job) []string {
	var notes []string
	j.Title = Line(j.Title)
	j.Company = Line(j.Company)
	j.Location = Line(j.Location)
	j.Description = Text(j.Description)
	j.Salary = Line(j.Salary)
	j.Source = Line(j.Source)

	if j.URL != "" {
		u, ok := URL(j.URL)
		if !ok {
			notes = append(notes, "url dropped: not a safe absolute url")
		}
		j.URL = u
	}
	if j.SalaryMin != 0 {
		n, ok := Number(j.SalaryMin)
		if !ok {
			notes = append(notes, "salary_min dropped: out of range")
		}
		j.SalaryMin = n
	}
	if j.SalaryMax != 0 {
		n, ok := Number(j.SalaryMax)
		if !ok {
			notes = append(notes, "salary_max dropped: out of range")
		}
		j.SalaryMax = n
	}
	if !j.WorkType.Valid() {
		j.WorkType = ""
	}
	return notes
}

func contact(c *model.Contact) []string {
	var notes []string
	c.Name = Line(c.Name)
	c.Title = Line(c.Title)
	c.Department = Line(c.Department)
	c.Company = Line(c.Company)
	c.Email = strings.ToLower(strings.ReplaceAll(Line(c.Email), " ", ""))
	c.Email = strings.TrimPrefix(c.Email, "mailto:")

	if c.Phone != "" {
		p, ok := Phone(c.Phone)
		if !ok {
			notes = append(notes, "phone dropped: invalid length")
		}
		c.Phone = p
	}
	if c.LinkedInURL != "" {
		u, ok := URL(c.LinkedInURL)
		if !ok {
			notes = append(notes, "linkedin_url dropped: not a safe absolute url")
		}
		c.LinkedInURL = u
	}
	return notes
}
