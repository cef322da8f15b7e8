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

const (
	disputeColumns = `
		id, reference_id, user_id, status, reason, resolution, resolved_by, resolved_at, closed_at,
		created_at, updated_at`
	activeDisputeIndex = "uniq_disputes_active_reference"
)

var errActiveDisputeExists = apperror.New(apperror.ErrCodeConflict, "an active dispute already exists for this reference")

type DisputeRepositoryAdapter struct {
	db *sqlx.DB
}

func NewDisputeRepositoryAdapter(db *sqlx.DB) *DisputeRepositoryAdapter {
	return &DisputeRepositoryAdapter{db: db}
}

func (r *DisputeRepositoryAdapter) Create(ctx context.Context, d *entity.Dispute, opening *entity.DisputeMessage) error {
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO disputes (` + disputeColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		if _, err := tx.ExecContext(ctx, query,
			d.ID, d.ReferenceID, d.UserID, string(d.Status), d.Reason, d.Resolution,
			d.ResolvedBy, d.ResolvedAt, d.ClosedAt, d.CreatedAt, d.UpdatedAt,
		); err != nil {
			return err
		}
		if opening == nil {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dispute_messages (id, dispute_id, user_id, message, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
		`, opening.ID, opening.DisputeID, opening.UserID, opening.Message, opening.CreatedAt)
		return err
	})
	if err != nil {
		if common.IsUniqueViolation(err, activeDisputeIndex) {
			return errActiveDisputeExists
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to open dispute")
	}
	return nil
}

func (r *DisputeRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	var row disputeRow
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load dispute")
	}
	return row.toEntity(), nil
}

func (r *DisputeRepositoryAdapter) FindByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*entity.Dispute, error) {
	var rows []disputeRow
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE reference_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, referenceID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load disputes")
	}
	result := make([]*entity.Dispute, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (r *DisputeRepositoryAdapter) FindActiveByReferenceID(ctx context.Context, referenceID uuid.UUID) (*entity.Dispute, error) {
	var row disputeRow
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE reference_id = $1 AND status <> $2 LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, referenceID, string(valueobject.DisputeStatusClosed)); err != nil {
		if common.IsNoRows(err) {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load active dispute")
	}
	return row.toEntity(), nil
}

func (r *DisputeRepositoryAdapter) UpdateStatus(ctx context.Context, d *entity.Dispute, expected valueobject.DisputeStatus) error {
	query := `
		UPDATE disputes
		SET status = $2, resolution = $3, resolved_by = $4, resolved_at = $5, closed_at = $6, updated_at = $7
		WHERE id = $1 AND status = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		d.ID, string(d.Status), d.Resolution, d.ResolvedBy, d.ResolvedAt, d.ClosedAt, d.UpdatedAt, string(expected),
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to update dispute status")
	}
	return common.ExpectAffected(res, apperror.ErrStaleState)
}

// AppendMessage вставляет сообщение одним запросом с проверкой статуса спора.
func (r *DisputeRepositoryAdapter) AppendMessage(ctx context.Context, msg *entity.DisputeMessage) error {
	query := `
		INSERT INTO dispute_messages (id, dispute_id, user_id, message, created_at, updated_at)
		SELECT $1, d.id, $3, $4, $5, $5 FROM disputes d WHERE d.id = $2 AND d.status = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.DisputeID, msg.UserID, msg.Message, msg.CreatedAt, string(valueobject.DisputeStatusOpen),
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to save dispute message")
	}
	return common.ExpectAffected(res, apperror.ErrStaleState)
}

func (r *DisputeRepositoryAdapter) FindMessages(ctx context.Context, disputeID uuid.UUID) ([]*entity.DisputeMessage, error) {
	var rows []disputeMessageRow
	query := `
		SELECT id, dispute_id, user_id, message, created_at
		FROM dispute_messages WHERE dispute_id = $1 ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &rows, query, disputeID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load dispute messages")
	}
	result := make([]*entity.DisputeMessage, len(rows))
	for i := range rows {
		result[i] = &entity.DisputeMessage{
			ID:        rows[i].ID,
			DisputeID: rows[i].DisputeID,
			UserID:    rows[i].UserID,
			Message:   rows[i].Message,
			CreatedAt: rows[i].CreatedAt,
		}
	}
	return result, nil
}

type disputeRow struct {
	ID          uuid.UUID  `db:"id"`
	ReferenceID uuid.UUID  `db:"reference_id"`
	UserID      uuid.UUID  `db:"user_id"`
	Status      string     `db:"status"`
	Reason      string     `db:"reason"`
	Resolution  *string    `db:"resolution"`
	ResolvedBy  *uuid.UUID `db:"resolved_by"`
	ResolvedAt  *time.Time `db:"resolved_at"`
	ClosedAt    *time.Time `db:"closed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (d *disputeRow) toEntity() *entity.Dispute {
	status, _ := valueobject.NewDisputeStatus(d.Status)
	return &entity.Dispute{
		ID:          d.ID,
		ReferenceID: d.ReferenceID,
		UserID:      d.UserID,
		Status:      status,
		Reason:      d.Reason,
		Resolution:  d.Resolution,
		ResolvedBy:  d.ResolvedBy,
		ResolvedAt:  d.ResolvedAt,
		ClosedAt:    d.ClosedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type disputeMessageRow struct {
	ID        uuid.UUID `db:"id"`
	DisputeID uuid.UUID `db:"dispute_id"`
	UserID    uuid.UUID `db:"user_id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}
