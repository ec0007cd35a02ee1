package interview

import (
	"context"
	"time"

	"talentflow/internal/common"
)

type Interview struct {
	ID            common.UUID `json:"id"`
	ApplicationID common.UUID `json:"application_id"`
	InterviewerID common.UUID `json:"interviewer_id"`
	ScheduledAt   time.Time   `json:"scheduled_at"`
	Location      string      `json:"location,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, item Interview) (*Interview, error)
	ListByApplication(ctx context.Context, applicationID common.UUID) ([]Interview, error)
}
