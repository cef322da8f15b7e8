package attendance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/repository"
	"github.com/ignatzorin/tertab-backend/internal/logger"
	"github.com/ignatzorin/tertab-backend/internal/metrics"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/usecase/attachment"
	"github.com/ignatzorin/tertab-backend/internal/usecase/verification"
)

const (
	verificationTemplate = "institution-verification"
	verificationSubject  = "Verify Your Institution Email - Tertab"
)

type Config struct {
	// VerifyBaseURL - адрес, к которому добавляются id записи и токен.
	VerifyBaseURL  string
	MailTimeout    time.Duration
	StorageTimeout time.Duration
}

// Manager ведёт записи об учёбе: создание, вложения, подтверждение почты, удаление.
type Manager struct {
	records   repository.AttendanceRepository
	documents repository.DocumentRepository
	storage   repository.FileStorage
	mailer    repository.Mailer
	settings  repository.SettingsProvider
	attacher  *attachment.Attacher
	tokens    *verification.TokenService
	cfg       Config
	clock     func() time.Time
	log       *logrus.Entry
}

func NewManager(
	records repository.AttendanceRepository,
	documents repository.DocumentRepository,
	storage repository.FileStorage,
	mailer repository.Mailer,
	settings repository.SettingsProvider,
	attacher *attachment.Attacher,
	tokens *verification.TokenService,
	cfg Config,
) *Manager {
	return &Manager{
		records:   records,
		documents: documents,
		storage:   storage,
		mailer:    mailer,
		settings:  settings,
		attacher:  attacher,
		tokens:    tokens,
		cfg:       cfg,
		clock:     time.Now,
		log:       logger.For("attendance"),
	}
}

// SubmitResult - созданная запись и предупреждения по вложениям и письму.
type SubmitResult struct {
	Record   *entity.InstitutionAttended
	Warnings []entity.Warning
}

// Submit сначала коммитит запись, затем прикрепляет файлы и отправляет письмо с токеном.
// Сбои вложений и письма не откатывают запись, а попадают в Warnings.
func (m *Manager) Submit(ctx context.Context, ownerID uuid.UUID, in entity.AttendanceInput, uploads []entity.Upload) (*SubmitResult, error) {
	record, err := entity.NewInstitutionAttended(ownerID, in, m.clock())
	if err != nil {
		return nil, err
	}
	if err := m.records.Create(ctx, record); err != nil {
		return nil, err
	}
	metrics.AttendanceSubmissions.WithLabelValues(string(record.Type), string(record.Status)).Inc()

	result := &SubmitResult{Record: record}

	docs, warnings := m.attacher.Attach(ctx, entity.InstitutionDocumentOwner(ownerID, record.ID), uploads)
	record.Documents = docs
	result.Warnings = append(result.Warnings, warnings...)

	if !record.IsVerified() && record.SchoolEmail != nil {
		challengeWarnings, err := m.SendVerificationChallenge(ctx, record)
		if err != nil {
			// Запись уже сохранена, пользователь может запросить письмо повторно.
			m.log.WithError(err).WithField("attendance_id", record.ID).Error("failed to issue verification challenge")
			challengeWarnings = []entity.Warning{challengeNotSent(record)}
		}
		result.Warnings = append(result.Warnings, challengeWarnings...)
	}

	m.log.WithFields(logrus.Fields{
		"attendance_id": record.ID,
		"user_id":       ownerID,
		"type":          record.Type,
		"status":        record.Status,
		"documents":     len(docs),
		"warnings":      len(result.Warnings),
	}).Info("institution attendance submitted")

	return result, nil
}

// SendVerificationChallenge выпускает токен и ставит письмо в очередь.
// Ошибка возвращается только при нарушении предусловий или сбое выпуска токена;
// сбой отправки письма превращается в предупреждение.
func (m *Manager) SendVerificationChallenge(ctx context.Context, record *entity.InstitutionAttended) ([]entity.Warning, error) {
	if err := record.CanReceiveChallenge(); err != nil {
		return nil, err
	}

	issued, err := m.tokens.Issue(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	record.VerificationTokenExpiresAt = &issued.ExpiresAt

	msg := entity.MailMessage{
		Template:  verificationTemplate,
		Subject:   verificationSubject,
		Recipient: *record.SchoolEmail,
		Data: map[string]string{
			"attendance_id": record.ID.String(),
			"token":         issued.Token,
			"verify_url":    m.verifyURL(record.ID, issued.Token),
			"expires_at":    issued.ExpiresAt.UTC().Format(time.RFC3339),
		},
	}

	mailCtx := ctx
	if m.cfg.MailTimeout > 0 {
		var cancel context.CancelFunc
		mailCtx, cancel = context.WithTimeout(ctx, m.cfg.MailTimeout)
		defer cancel()
	}
	if err := m.mailer.Send(mailCtx, msg); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"attendance_id": record.ID,
			"recipient":     msg.Recipient,
		}).Warn("verification email could not be dispatched")
		return []entity.Warning{challengeNotSent(record)}, nil
	}
	return nil, nil
}

// Verify гасит токен из письма.
func (m *Manager) Verify(ctx context.Context, attendanceID uuid.UUID, token string) (*entity.InstitutionAttended, error) {
	return m.tokens.Consume(ctx, attendanceID, token)
}

func (m *Manager) Find(ctx context.Context, id uuid.UUID) (*entity.InstitutionAttended, error) {
	return m.records.FindByID(ctx, id)
}

// Listing - записи пользователя с документами и текущими ценами платформы.
type Listing struct {
	Records  []*entity.InstitutionAttended
	Settings *entity.PlatformSetting
}

func (m *Manager) ListMine(ctx context.Context, ownerID uuid.UUID) (*Listing, error) {
	records, err := m.records.FindByUserID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		docs, err := m.documents.FindByAttendanceID(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		record.Documents = docs
	}

	listing := &Listing{Records: records}
	settings, err := m.settings.Current(ctx)
	switch {
	case err == nil:
		listing.Settings = settings
	case apperror.IsNotFound(err):
	default:
		return nil, err
	}
	return listing, nil
}

// Remove удаляет запись владельца в две фазы: сначала файлы всех документов,
// затем в одной транзакции строки документов и сама запись.
// Если хотя бы один файл не удалился, запись остаётся и вызывающий должен повторить.
func (m *Manager) Remove(ctx context.Context, requesterID uuid.UUID, record *entity.InstitutionAttended) error {
	if !record.IsOwnedBy(requesterID) {
		return apperror.ErrForbidden
	}

	docs, err := m.documents.FindByAttendanceID(ctx, record.ID)
	if err != nil {
		return err
	}

	var failures []error
	for _, doc := range docs {
		if err := m.removeFile(ctx, doc); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		m.log.WithError(errors.Join(failures...)).WithFields(logrus.Fields{
			"attendance_id": record.ID,
			"failed":        len(failures),
			"documents":     len(docs),
		}).Error("institution attendance removal aborted")
		return apperror.Wrap(errors.Join(failures...), apperror.ErrCodeDependencyFailure,
			"some documents could not be removed, please try again")
	}

	if err := m.records.Delete(ctx, record.ID); err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"attendance_id": record.ID,
		"user_id":       requesterID,
		"documents":     len(docs),
	}).Info("institution attendance removed")
	return nil
}

func (m *Manager) removeFile(ctx context.Context, doc *entity.Document) error {
	storageCtx := ctx
	if m.cfg.StorageTimeout > 0 {
		var cancel context.CancelFunc
		storageCtx, cancel = context.WithTimeout(ctx, m.cfg.StorageTimeout)
		defer cancel()
	}

	exists, err := m.storage.Exists(storageCtx, doc.Path)
	if err != nil {
		return fmt.Errorf("check %s: %w", doc.Path, err)
	}
	if !exists {
		return nil
	}
	if _, err := m.storage.Delete(storageCtx, doc.Path); err != nil {
		return fmt.Errorf("delete %s: %w", doc.Path, err)
	}
	return nil
}

func (m *Manager) verifyURL(id uuid.UUID, token string) string {
	base := m.cfg.VerifyBaseURL
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/institutions/%s/verify?token=%s", base, id, url.QueryEscape(token))
}

func challengeNotSent(record *entity.InstitutionAttended) entity.Warning {
	target := ""
	if record.SchoolEmail != nil {
		target = *record.SchoolEmail
	}
	return entity.Warning{
		Code:    entity.WarningChallengeNotSent,
		Target:  target,
		Message: "Institution saved, but we could not send the verification email. Please request it again.",
	}
}
