package validate

import "github.com/sells-group/jobsearch-cli/internal/model"

// Field names used in the weight tables.
const (
	FieldSalary     = "salary"
	FieldSource     = "source"
	FieldPostedAt   = "posted_at"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldLinkedIn   = "linkedin"
	FieldDepartment = "department"
	FieldTitle      = "title"
)

// Weights is a base score plus a fixed bonus per present optional field.
type Weights struct {
	Base   int
	Fields map[string]int
}

// JobWeights scores job postings.
var JobWeights = Weights{
	Base: 80,
	Fields: map[string]int{
		FieldSalary:   10,
		FieldSource:   5,
		FieldPostedAt: 5,
	},
}

// ContactWeights scores contacts.
var ContactWeights = Weights{
	Base: 50,
	Fields: map[string]int{
		FieldEmail:      10,
		FieldPhone:      5,
		FieldLinkedIn:   10,
		FieldDepartment: 5,
		FieldTitle:      5,
	},
}

// RoleEmailPenalty is subtracted for a shared role mailbox.
const RoleEmailPenalty = 15

// Score returns w.Base plus the weight of every present field, minus
// penalty, clamped to [0, 100].
func Score(w Weights, present []string, penalty int) int {
	score := w.Base
	for _, f := range present {
		score += w.Fields[f]
	}
	score -= penalty
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

func jobFields(j *model.Job) []string {
	var present []string
	if j.HasSalary() {
		present = append(present, FieldSalary)
	}
	if j.Source != "" {
		present = append(present, FieldSource)
	}
	if j.PostedAt != nil && !j.PostedAt.IsZero() {
		present = append(present, FieldPostedAt)
	}
	return present
}

func contactFields(c *model.Contact) []string {
	var present []string
	if c.Email != "" {
		present = append(present, FieldEmail)
	}
	if c.Phone != "" {
		present = append(present, FieldPhone)
	}
	if c.LinkedInURL != "" {
		present = append(present, FieldLinkedIn)
	}
	if c.Department != "" {
		present = append(present, FieldDepartment)
	}
	if c.Title != "" {
		present = append(present, FieldTitle)
	}
	return present
}
