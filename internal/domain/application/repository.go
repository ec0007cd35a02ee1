package application

import (
	"context"
	"errors"
	"time"

	"talentflow/internal/common"
)

// ErrStaleVersion is the cause carried by a conditional write that lost the
// race against another writer.
var ErrStaleVersion = errors.New("application version changed")

// StagePatch is the conditional update applied by UpdateStage. The write only
// succeeds when the stored version still equals the expected one.
type StagePatch struct {
	Stage          Stage
	HighestStage   Stage
	HeldFrom       Stage
	StageChangedAt time.Time
	Change         StageChange
}

// DetailsPatch updates reviewer assignment and notes without touching stage.
type DetailsPatch struct {
	ReviewerID *common.UUID
	Notes      *string
}

// Scope selects the applications of one job or of every job in an organization.
type Scope struct {
	JobID          common.UUID `json:"job_id,omitempty"`
	OrganizationID common.UUID `json:"organization_id,omitempty"`
}

type Repository interface {
	Create(ctx context.Context, app Application) (*Application, error)
	GetByID(ctx context.Context, id common.UUID) (*Application, error)
	FindByJobAndCandidate(ctx context.Context, jobID, candidateID common.UUID) (*Application, error)
	List(ctx context.Context, scope Scope) ([]Application, error)
	ListByCandidate(ctx context.Context, candidateID common.UUID) ([]Application, error)
	UpdateStage(ctx context.Context, id common.UUID, expectedVersion int64, patch StagePatch) (*Application, error)
	UpdateDetails(ctx context.Context, id common.UUID, expectedVersion int64, patch DetailsPatch) (*Application, error)
	History(ctx context.Context, id common.UUID) ([]StageChange, error)
}
