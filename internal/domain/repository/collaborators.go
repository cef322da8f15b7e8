package repository

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
)

// FileStorage хранит содержимое документов; путь для ядра непрозрачен.
type FileStorage interface {
	Store(ctx context.Context, ownerID uuid.UUID, name string, r io.Reader) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Delete возвращает false, если объекта уже не было.
	Delete(ctx context.Context, path string) (bool, error)
}

type Mailer interface {
	Send(ctx context.Context, msg entity.MailMessage) error
}

type SettingsProvider interface {
	Current(ctx context.Context) (*entity.PlatformSetting, error)
	CurrentPrice(ctx context.Context, class valueobject.RequestClass) (valueobject.Money, error)
}
