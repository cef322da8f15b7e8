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

const referenceColumns = `
	id, student_id, lecturer_id, institution_id, reference_type, request_type, reference_description,
	status, reference_rejection_reason, reference_email, payment_processed, document_path, created_at, updated_at`

type ReferenceRepositoryAdapter struct {
	db *sqlx.DB
}

func NewReferenceRepositoryAdapter(db *sqlx.DB) *ReferenceRepositoryAdapter {
	return &ReferenceRepositoryAdapter{db: db}
}

func (r *ReferenceRepositoryAdapter) Create(ctx context.Context, ref *entity.Reference) error {
	query := `
		INSERT INTO "references" (` + referenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		ref.ID, ref.StudentID, ref.LecturerID, ref.InstitutionID, ref.ReferenceType, ref.RequestType,
		ref.Description, string(ref.Status), ref.RejectionReason, ref.ReferenceEmail,
		ref.PaymentProcessed, ref.DocumentPath, ref.CreatedAt, ref.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to save reference")
	}
	return nil
}

func (r *ReferenceRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Reference, error) {
	var row referenceRow
	query := `SELECT ` + referenceColumns + ` FROM "references" WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrReferenceNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load reference")
	}
	return row.toEntity(), nil
}

func (r *ReferenceRepositoryAdapter) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Reference, error) {
	var rows []referenceRow
	query := `
		SELECT ` + referenceColumns + ` FROM "references"
		WHERE student_id = $1 OR lecturer_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load references")
	}
	result := make([]*entity.Reference, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (r *ReferenceRepositoryAdapter) UpdateStatus(ctx context.Context, ref *entity.Reference, expected valueobject.ReferenceStatus) error {
	query := `
		UPDATE "references"
		SET status = $2, reference_rejection_reason = $3, document_path = $4, updated_at = $5
		WHERE id = $1 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		ref.ID, string(ref.Status), ref.RejectionReason, ref.DocumentPath, ref.UpdatedAt, string(expected),
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to update reference status")
	}
	return common.ExpectAffected(res, apperror.ErrStaleState)
}

// MarkPaid идемпотентен: повторный вызов ничего не меняет.
func (r *ReferenceRepositoryAdapter) MarkPaid(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE "references" SET payment_processed = TRUE,
		updated_at = CASE WHEN payment_processed THEN updated_at ELSE NOW() END
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to mark reference paid")
	}
	return common.ExpectAffected(res, apperror.ErrReferenceNotFound)
}

type referenceRow struct {
	ID               uuid.UUID  `db:"id"`
	StudentID        uuid.UUID  `db:"student_id"`
	LecturerID       uuid.UUID  `db:"lecturer_id"`
	InstitutionID    *uuid.UUID `db:"institution_id"`
	ReferenceType    string     `db:"reference_type"`
	RequestType      string     `db:"request_type"`
	Description      string     `db:"reference_description"`
	Status           string     `db:"status"`
	RejectionReason  *string    `db:"reference_rejection_reason"`
	ReferenceEmail   *string    `db:"reference_email"`
	PaymentProcessed bool       `db:"payment_processed"`
	DocumentPath     *string    `db:"document_path"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r *referenceRow) toEntity() *entity.Reference {
	status, _ := valueobject.NewReferenceStatus(r.Status)
	return &entity.Reference{
		ID:               r.ID,
		StudentID:        r.StudentID,
		LecturerID:       r.LecturerID,
		InstitutionID:    r.InstitutionID,
		ReferenceType:    r.ReferenceType,
		RequestType:      r.RequestType,
		Description:      r.Description,
		Status:           status,
		RejectionReason:  r.RejectionReason,
		ReferenceEmail:   r.ReferenceEmail,
		PaymentProcessed: r.PaymentProcessed,
		DocumentPath:     r.DocumentPath,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
