package job

import (
	"context"

	"talentflow/internal/common"
)

type Repository interface {
	Create(ctx context.Context, job Job) (*Job, error)
	Update(ctx context.Context, job Job) (*Job, error)
	GetByID(ctx context.Context, id common.UUID) (*Job, error)
	ListByOrganization(ctx context.Context, organizationID common.UUID) ([]Job, error)
}
