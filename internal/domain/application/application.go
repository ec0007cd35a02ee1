package application

import (
	"time"

	"talentflow/internal/common"
)

// Application is one candidate's pursuit of one job. Stage only changes through
// the pipeline service; Version guards every write.
type Application struct {
	ID             common.UUID  `json:"id"`
	JobID          common.UUID  `json:"job_id"`
	CandidateID    common.UUID  `json:"candidate_id"`
	Stage          Stage        `json:"stage"`
	HighestStage   Stage        `json:"highest_stage"`
	HeldFrom       Stage        `json:"held_from,omitempty"`
	Score          *int         `json:"score,omitempty"`
	ReviewerID     *common.UUID `json:"reviewer_id,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Version        int64        `json:"version"`
	AppliedAt      time.Time    `json:"applied_at"`
	StageChangedAt time.Time    `json:"stage_changed_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (a Application) Position() Position {
	return Position{Stage: a.Stage, HeldFrom: a.HeldFrom}
}

// StageChange is one audit row written together with a stage update.
type StageChange struct {
	ID            common.UUID `json:"id"`
	ApplicationID common.UUID `json:"application_id"`
	FromStage     Stage       `json:"from_stage"`
	ToStage       Stage       `json:"to_stage"`
	ActorID       common.UUID `json:"actor_id"`
	ActorRole     Role        `json:"actor_role"`
	Note          string      `json:"note,omitempty"`
	ChangedAt     time.Time   `json:"changed_at"`
}
