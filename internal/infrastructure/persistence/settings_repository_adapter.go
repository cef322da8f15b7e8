package persistence

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/repository/common"
)

type SettingsRepositoryAdapter struct {
	db *sqlx.DB
}

func NewSettingsRepositoryAdapter(db *sqlx.DB) *SettingsRepositoryAdapter {
	return &SettingsRepositoryAdapter{db: db}
}

func (r *SettingsRepositoryAdapter) Get(ctx context.Context) (*entity.PlatformSetting, error) {
	var row settingsRow
	query := `
		SELECT reference_request_price::text AS reference_request_price,
		express_reference_request_price::text AS express_reference_request_price,
		updated_at
		FROM platform_settings WHERE id = 1
	`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrSettingsNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load platform settings")
	}
	return row.toEntity()
}

type settingsRow struct {
	ReferenceRequestPrice        string    `db:"reference_request_price"`
	ExpressReferenceRequestPrice string    `db:"express_reference_request_price"`
	UpdatedAt                    time.Time `db:"updated_at"`
}

func (s *settingsRow) toEntity() (*entity.PlatformSetting, error) {
	standard, err := valueobject.ParseMoney(s.ReferenceRequestPrice, valueobject.DefaultCurrency)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "invalid reference request price")
	}
	express, err := valueobject.ParseMoney(s.ExpressReferenceRequestPrice, valueobject.DefaultCurrency)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "invalid express reference request price")
	}
	return &entity.PlatformSetting{
		ReferenceRequestPrice:        standard,
		ExpressReferenceRequestPrice: express,
		UpdatedAt:                    s.UpdatedAt,
	}, nil
}
