package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

const documentColumns = `id, user_id, path, name, type, institution_attended_id, reference_id, created_at, updated_at`

type DocumentRepositoryAdapter struct {
	db *sqlx.DB
}

func NewDocumentRepositoryAdapter(db *sqlx.DB) *DocumentRepositoryAdapter {
	return &DocumentRepositoryAdapter{db: db}
}

func (r *DocumentRepositoryAdapter) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.UserID, doc.Path, doc.Name, string(doc.Type),
		doc.InstitutionAttendedID, doc.ReferenceID, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to save document")
	}
	return nil
}

func (r *DocumentRepositoryAdapter) FindByAttendanceID(ctx context.Context, attendanceID uuid.UUID) ([]*entity.Document, error) {
	return r.findBy(ctx, "institution_attended_id", attendanceID)
}

func (r *DocumentRepositoryAdapter) FindByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*entity.Document, error) {
	return r.findBy(ctx, "reference_id", referenceID)
}

// column подставляется только из констант выше.
func (r *DocumentRepositoryAdapter) findBy(ctx context.Context, column string, id uuid.UUID) ([]*entity.Document, error) {
	var rows []documentRow
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + column + ` = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load documents")
	}
	result := make([]*entity.Document, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

type documentRow struct {
	ID                    uuid.UUID  `db:"id"`
	UserID                uuid.UUID  `db:"user_id"`
	Path                  string     `db:"path"`
	Name                  string     `db:"name"`
	Type                  string     `db:"type"`
	InstitutionAttendedID *uuid.UUID `db:"institution_attended_id"`
	ReferenceID           *uuid.UUID `db:"reference_id"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func (d *documentRow) toEntity() *entity.Document {
	return &entity.Document{
		ID:                    d.ID,
		UserID:                d.UserID,
		Path:                  d.Path,
		Name:                  d.Name,
		Type:                  valueobject.DocumentType(d.Type),
		InstitutionAttendedID: d.InstitutionAttendedID,
		ReferenceID:           d.ReferenceID,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}
