package notification

import (
	"context"
	"time"

	"talentflow/internal/common"
)

type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
)

type Notification struct {
	ID                  common.UUID `json:"id"`
	TargetUserID        common.UUID `json:"target_user_id"`
	Message             string      `json:"message"`
	Category            Category    `json:"category"`
	SourceApplicationID common.UUID `json:"source_application_id"`
	CreatedAt           time.Time   `json:"created_at"`
}

// Emitter accepts a notification for delivery. Implementations guarantee
// at-least-once enqueue and own any retry.
type Emitter interface {
	Emit(ctx context.Context, item Notification) error
}

type Repository interface {
	Create(ctx context.Context, item Notification) error
	ListByUser(ctx context.Context, userID common.UUID, limit int) ([]Notification, error)
}
