package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"talentflow/internal/common"
	"talentflow/internal/domain/application"
)

const applicationColumns = `a.id, a.job_id, a.candidate_id, a.stage, a.highest_stage, a.held_from, a.score, a.reviewer_id, a.notes, a.version, a.applied_at, a.stage_changed_at, a.updated_at`

type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, app application.Application) (*application.Application, error) {
	app.ID = common.NewUUID()
	now := time.Now().UTC()
	app.AppliedAt = now
	app.StageChangedAt = now
	app.UpdatedAt = now
	app.Version = 1
	if app.HighestStage == "" {
		app.HighestStage = application.Reached("", app.Stage)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO applications (id, job_id, candidate_id, stage, highest_stage, held_from, score, reviewer_id, notes, version, applied_at, stage_changed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		app.ID, app.JobID, app.CandidateID, app.Stage, app.HighestStage, nullStage(app.HeldFrom), nullInt(app.Score), nullUUID(app.ReviewerID), app.Notes, app.Version, app.AppliedAt, app.StageChangedAt, app.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.NewError(common.CodeConflict, "already applied", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to create application", err)
	}
	return &app, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id common.UUID) (*application.Application, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "application not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load application", err)
	}
	return app, nil
}

func (r *ApplicationRepository) FindByJobAndCandidate(ctx context.Context, jobID, candidateID common.UUID) (*application.Application, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.job_id = $1 AND a.candidate_id = $2`, jobID, candidateID)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "application not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load application", err)
	}
	return app, nil
}

func (r *ApplicationRepository) List(ctx context.Context, scope application.Scope) ([]application.Application, error) {
	var rows *sql.Rows
	var err error
	switch {
	case scope.JobID != "":
		rows, err = r.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.job_id = $1 ORDER BY a.applied_at`, scope.JobID)
	case scope.OrganizationID != "":
		rows, err = r.db.QueryContext(ctx, `SELECT `+applicationColumns+`
			FROM applications a
			JOIN jobs j ON j.id = a.job_id
			WHERE j.organization_id = $1
			ORDER BY a.applied_at`, scope.OrganizationID)
	default:
		return nil, common.NewValidationError("invalid scope", map[string]string{"scope": "job_id or organization_id is required"})
	}
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list applications", err)
	}
	return collectApplications(rows)
}

func (r *ApplicationRepository) ListByCandidate(ctx context.Context, candidateID common.UUID) ([]application.Application, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.candidate_id = $1 ORDER BY a.applied_at DESC`, candidateID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list candidate applications", err)
	}
	return collectApplications(rows)
}

// UpdateStage applies patch only when the stored version still equals
// expectedVersion. The stage change and its history row commit together and
// the returned application is the row written by that transaction.
func (r *ApplicationRepository) UpdateStage(ctx context.Context, id common.UUID, expectedVersion int64, patch application.StagePatch) (*application.Application, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to begin stage update", err)
	}
	row := tx.QueryRowContext(ctx, `UPDATE applications AS a
		SET stage = $1, highest_stage = $2, held_from = $3, stage_changed_at = $4, updated_at = $4, version = a.version + 1
		WHERE a.id = $5 AND a.version = $6
		RETURNING `+applicationColumns,
		patch.Stage, patch.HighestStage, nullStage(patch.HeldFrom), patch.StageChangedAt, id, expectedVersion)
	updated, err := scanApplication(row)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrStale(ctx, id)
		}
		return nil, common.NewError(common.CodeInternal, "failed to update application stage", err)
	}
	change := patch.Change
	if change.ID == "" {
		change.ID = common.NewUUID()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO application_stage_history (id, application_id, from_stage, to_stage, actor_id, actor_role, note, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		change.ID, id, change.FromStage, change.ToStage, change.ActorID, change.ActorRole, change.Note, patch.StageChangedAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, common.NewError(common.CodeInternal, "failed to record stage change", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to commit stage update", err)
	}
	return updated, nil
}

func (r *ApplicationRepository) UpdateDetails(ctx context.Context, id common.UUID, expectedVersion int64, patch application.DetailsPatch) (*application.Application, error) {
	var notes any
	if patch.Notes != nil {
		notes = *patch.Notes
	}
	row := r.db.QueryRowContext(ctx, `UPDATE applications AS a
		SET reviewer_id = COALESCE($1, a.reviewer_id), notes = COALESCE($2, a.notes), updated_at = $3, version = a.version + 1
		WHERE a.id = $4 AND a.version = $5
		RETURNING `+applicationColumns,
		nullUUID(patch.ReviewerID), notes, time.Now().UTC(), id, expectedVersion)
	updated, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrStale(ctx, id)
		}
		return nil, common.NewError(common.CodeInternal, "failed to update application", err)
	}
	return updated, nil
}

func (r *ApplicationRepository) History(ctx context.Context, id common.UUID) ([]application.StageChange, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, application_id, from_stage, to_stage, actor_id, actor_role, note, changed_at
		FROM application_stage_history WHERE application_id = $1 ORDER BY changed_at`, id)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list stage history", err)
	}
	defer rows.Close()
	var items []application.StageChange
	for rows.Next() {
		var change application.StageChange
		if err := rows.Scan(&change.ID, &change.ApplicationID, &change.FromStage, &change.ToStage, &change.ActorID, &change.ActorRole, &change.Note, &change.ChangedAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan stage history", err)
		}
		items = append(items, change)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list stage history", err)
	}
	return items, nil
}

func (r *ApplicationRepository) missOrStale(ctx context.Context, id common.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return common.NewError(common.CodeConflict, "application was modified concurrently", application.ErrStaleVersion)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*application.Application, error) {
	var app application.Application
	var stage, highest string
	var heldFrom, reviewerID sql.NullString
	var score sql.NullInt64
	if err := row.Scan(&app.ID, &app.JobID, &app.CandidateID, &stage, &highest, &heldFrom, &score, &reviewerID, &app.Notes, &app.Version, &app.AppliedAt, &app.StageChangedAt, &app.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := application.ParseStage(stage)
	if err != nil {
		return nil, err
	}
	app.Stage = parsed
	if highest != "" {
		if parsed, err := application.ParseStage(highest); err == nil {
			app.HighestStage = parsed
		}
	}
	app.HighestStage = application.Reached(app.HighestStage, app.Stage)
	if heldFrom.Valid && heldFrom.String != "" {
		if parsed, err := application.ParseStage(heldFrom.String); err == nil {
			app.HeldFrom = parsed
		}
	}
	if score.Valid {
		value := int(score.Int64)
		app.Score = &value
	}
	if reviewerID.Valid && reviewerID.String != "" {
		id := common.UUID(reviewerID.String)
		app.ReviewerID = &id
	}
	return &app, nil
}

func collectApplications(rows *sql.Rows) ([]application.Application, error) {
	defer rows.Close()
	var items []application.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan application", err)
		}
		items = append(items, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list applications", err)
	}
	return items, nil
}

func nullStage(stage application.Stage) any {
	if stage == "" {
		return nil
	}
	return string(stage)
}

func nullInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullUUID(value *common.UUID) any {
	if value == nil || *value == "" {
		return nil
	}
	return value.String()
}

// isUniqueViolation understands both drivers the service can run on.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
