package candidate

import (
	"context"
	"time"

	"talentflow/internal/common"
)

// Candidate is the job seeker profile. UserID is the account notifications
// are addressed to.
type Candidate struct {
	ID        common.UUID `json:"id"`
	UserID    common.UUID `json:"user_id"`
	FullName  string      `json:"full_name"`
	Email     string      `json:"email"`
	CreatedAt time.Time   `json:"created_at"`
}

type Repository interface {
	GetByID(ctx context.Context, id common.UUID) (*Candidate, error)
}
