package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
)

type AttendanceRepository interface {
	Create(ctx context.Context, record *entity.InstitutionAttended) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.InstitutionAttended, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.InstitutionAttended, error)
	// SaveChallenge заменяет токен только у записи в статусе pending.
	SaveChallenge(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt, now time.Time) error
	// MarkVerified срабатывает, только если запись pending и хранит именно tokenHash.
	MarkVerified(ctx context.Context, id uuid.UUID, tokenHash string, now time.Time) error
	// Delete удаляет строки документов и саму запись в одной транзакции.
	Delete(ctx context.Context, id uuid.UUID) error
	// HasVerifiedLecturer: institutionID == nil означает любое заведение.
	HasVerifiedLecturer(ctx context.Context, userID uuid.UUID, institutionID *uuid.UUID) (bool, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	FindByAttendanceID(ctx context.Context, attendanceID uuid.UUID) ([]*entity.Document, error)
	FindByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*entity.Document, error)
}
