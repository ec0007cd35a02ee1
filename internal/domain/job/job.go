package job

import (
	"time"

	"talentflow/internal/common"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusOpen   Status = "open"
	StatusOnHold Status = "on_hold"
	StatusClosed Status = "closed"
	StatusFilled Status = "filled"
)

type Job struct {
	ID             common.UUID `json:"id"`
	OrganizationID common.UUID `json:"organization_id"`
	Title          string      `json:"title"`
	Company        string      `json:"company"`
	Location       string      `json:"location,omitempty"`
	Skills         []string    `json:"skills,omitempty"`
	Status         Status      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// AcceptsApplications reports whether new applications may be created. Existing
// applications keep moving regardless of job status.
func (j Job) AcceptsApplications() bool {
	return j.Status == StatusOpen
}
