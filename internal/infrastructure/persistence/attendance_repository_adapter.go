package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/repository/common"
)

const attendanceColumns = `
	id, user_id, institution_id, state_id, type, field_of_study, position, start_date, end_date,
	school_email, status, verification_token, verification_token_expires_at, created_at, updated_at`

type AttendanceRepositoryAdapter struct {
	db *sqlx.DB
}

func NewAttendanceRepositoryAdapter(db *sqlx.DB) *AttendanceRepositoryAdapter {
	return &AttendanceRepositoryAdapter{db: db}
}

func (r *AttendanceRepositoryAdapter) Create(ctx context.Context, a *entity.InstitutionAttended) error {
	query := `
		INSERT INTO institution_attended (` + attendanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.InstitutionID, a.StateID, string(a.Type), a.FieldOfStudy, a.Position,
		a.StartDate, a.EndDate, a.SchoolEmail, string(a.Status), a.VerificationTokenHash,
		a.VerificationTokenExpiresAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to save institution attendance")
	}
	return nil
}

func (r *AttendanceRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.InstitutionAttended, error) {
	var row attendanceRow
	query := `SELECT ` + attendanceColumns + ` FROM institution_attended WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrAttendanceNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load institution attendance")
	}
	return row.toEntity(), nil
}

func (r *AttendanceRepositoryAdapter) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.InstitutionAttended, error) {
	var rows []attendanceRow
	query := `SELECT ` + attendanceColumns + ` FROM institution_attended WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load institution attendances")
	}
	result := make([]*entity.InstitutionAttended, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (r *AttendanceRepositoryAdapter) SaveChallenge(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt, now time.Time) error {
	query := `
		UPDATE institution_attended
		SET verification_token = $2, verification_token_expires_at = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, id, tokenHash, expiresAt, now, string(valueobject.AttendanceStatusPending))
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to save verification token")
	}
	return common.ExpectAffected(res, apperror.ErrStaleState)
}

func (r *AttendanceRepositoryAdapter) MarkVerified(ctx context.Context, id uuid.UUID, tokenHash string, now time.Time) error {
	query := `
		UPDATE institution_attended
		SET status = $2, verification_token = NULL, verification_token_expires_at = NULL, updated_at = $3
		WHERE id = $1 AND status = $4 AND verification_token = $5
	`
	res, err := r.db.ExecContext(ctx, query, id,
		string(valueobject.AttendanceStatusVerified), now,
		string(valueobject.AttendanceStatusPending), tokenHash,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to verify institution attendance")
	}
	return common.ExpectAffected(res, apperror.ErrStaleState)
}

// Delete удаляет строки документов и запись одной транзакцией.
func (r *AttendanceRepositoryAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE institution_attended_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM institution_attended WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return common.ExpectAffected(res, apperror.ErrAttendanceNotFound)
	})
	if err != nil {
		if apperror.IsNotFound(err) {
			return err
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to delete institution attendance")
	}
	return nil
}

func (r *AttendanceRepositoryAdapter) HasVerifiedLecturer(ctx context.Context, userID uuid.UUID, institutionID *uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM institution_attended
			WHERE user_id = $1 AND type = $2 AND status = $3
			AND ($4::uuid IS NULL OR institution_id = $4::uuid)
		)
	`
	err := r.db.GetContext(ctx, &exists, query, userID,
		string(valueobject.AttendanceTypeLecturer), string(valueobject.AttendanceStatusVerified), institutionID,
	)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to check lecturer eligibility")
	}
	return exists, nil
}

type attendanceRow struct {
	ID                         uuid.UUID  `db:"id"`
	UserID                     uuid.UUID  `db:"user_id"`
	InstitutionID              uuid.UUID  `db:"institution_id"`
	StateID                    uuid.UUID  `db:"state_id"`
	Type                       string     `db:"type"`
	FieldOfStudy               *string    `db:"field_of_study"`
	Position                   *string    `db:"position"`
	StartDate                  *time.Time `db:"start_date"`
	EndDate                    *time.Time `db:"end_date"`
	SchoolEmail                *string    `db:"school_email"`
	Status                     string     `db:"status"`
	VerificationToken          *string    `db:"verification_token"`
	VerificationTokenExpiresAt *time.Time `db:"verification_token_expires_at"`
	CreatedAt                  time.Time  `db:"created_at"`
	UpdatedAt                  time.Time  `db:"updated_at"`
}

func (a *attendanceRow) toEntity() *entity.InstitutionAttended {
	status, _ := valueobject.NewAttendanceStatus(a.Status)
	return &entity.InstitutionAttended{
		ID:                         a.ID,
		UserID:                     a.UserID,
		InstitutionID:              a.InstitutionID,
		StateID:                    a.StateID,
		Type:                       valueobject.AttendanceType(a.Type),
		FieldOfStudy:               a.FieldOfStudy,
		Position:                   a.Position,
		StartDate:                  a.StartDate,
		EndDate:                    a.EndDate,
		SchoolEmail:                a.SchoolEmail,
		Status:                     status,
		VerificationTokenHash:      a.VerificationToken,
		VerificationTokenExpiresAt: a.VerificationTokenExpiresAt,
		CreatedAt:                  a.CreatedAt,
		UpdatedAt:                  a.UpdatedAt,
	}
}
