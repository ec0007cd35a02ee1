package postgres

import (
	"context"
	"database/sql"
	"time"

	"talentflow/internal/common"
	"talentflow/internal/domain/interview"
)

type InterviewRepository struct {
	db *sql.DB
}

func NewInterviewRepository(db *sql.DB) *InterviewRepository {
	return &InterviewRepository{db: db}
}

func (r *InterviewRepository) Create(ctx context.Context, item interview.Interview) (*interview.Interview, error) {
	item.ID = common.NewUUID()
	item.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO interviews (id, application_id, interviewer_id, scheduled_at, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.ApplicationID, item.InterviewerID, item.ScheduledAt, item.Location, item.CreatedAt)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to create interview", err)
	}
	return &item, nil
}

func (r *InterviewRepository) ListByApplication(ctx context.Context, applicationID common.UUID) ([]interview.Interview, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, application_id, interviewer_id, scheduled_at, location, created_at
		FROM interviews WHERE application_id = $1 ORDER BY scheduled_at`, applicationID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list interviews", err)
	}
	defer rows.Close()
	var items []interview.Interview
	for rows.Next() {
		var item interview.Interview
		if err := rows.Scan(&item.ID, &item.ApplicationID, &item.InterviewerID, &item.ScheduledAt, &item.Location, &item.CreatedAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan interview", err)
		}
		items = append(items, item)
	}
	return items, nil
}
