package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
)

type ReferenceRepository interface {
	Create(ctx context.Context, ref *entity.Reference) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Reference, error)
	// FindByUserID возвращает рекомендации, где пользователь студент или преподаватель.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Reference, error)
	// UpdateStatus сохраняет переход, если в базе всё ещё expected, иначе ErrStaleState.
	UpdateStatus(ctx context.Context, ref *entity.Reference, expected valueobject.ReferenceStatus) error
	MarkPaid(ctx context.Context, id uuid.UUID) error
}

type DisputeRepository interface {
	// Create сохраняет спор вместе с первым сообщением.
	Create(ctx context.Context, dispute *entity.Dispute, opening *entity.DisputeMessage) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	FindByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*entity.Dispute, error)
	// FindActiveByReferenceID возвращает незакрытый спор или nil.
	FindActiveByReferenceID(ctx context.Context, referenceID uuid.UUID) (*entity.Dispute, error)
	UpdateStatus(ctx context.Context, dispute *entity.Dispute, expected valueobject.DisputeStatus) error
	// AppendMessage добавляет сообщение, только пока спор открыт.
	AppendMessage(ctx context.Context, msg *entity.DisputeMessage) error
	FindMessages(ctx context.Context, disputeID uuid.UUID) ([]*entity.DisputeMessage, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*entity.PlatformSetting, error)
}
