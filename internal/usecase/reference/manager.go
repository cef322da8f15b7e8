package reference

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/repository"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/logger"
	"github.com/ignatzorin/tertab-backend/internal/metrics"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/usecase/attachment"
)

// LecturerEligibility - правило: рекомендацию можно запросить только у преподавателя,
// подтвердившего работу в указанном заведении (или в любом, если заведение не задано).
type LecturerEligibility struct {
	attendances repository.AttendanceRepository
}

func NewLecturerEligibility(attendances repository.AttendanceRepository) LecturerEligibility {
	return LecturerEligibility{attendances: attendances}
}

func (e LecturerEligibility) Check(ctx context.Context, lecturerID uuid.UUID, institutionID *uuid.UUID) error {
	ok, err := e.attendances.HasVerifiedLecturer(ctx, lecturerID, institutionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.FieldError("lecturer_id", "the selected lecturer is not a verified lecturer at this institution")
	}
	return nil
}

// Manager ведёт жизненный цикл рекомендации:
// requested -> in_progress -> completed, requested|in_progress -> rejected.
type Manager struct {
	references  repository.ReferenceRepository
	documents   repository.DocumentRepository
	storage     repository.FileStorage
	settings    repository.SettingsProvider
	attacher    *attachment.Attacher
	eligibility LecturerEligibility
	clock       func() time.Time
	log         *logrus.Entry
}

func NewManager(
	references repository.ReferenceRepository,
	documents repository.DocumentRepository,
	storage repository.FileStorage,
	settings repository.SettingsProvider,
	attacher *attachment.Attacher,
	eligibility LecturerEligibility,
) *Manager {
	return &Manager{
		references:  references,
		documents:   documents,
		storage:     storage,
		settings:    settings,
		attacher:    attacher,
		eligibility: eligibility,
		clock:       time.Now,
		log:         logger.For("reference"),
	}
}

func (m *Manager) Create(ctx context.Context, studentID uuid.UUID, in entity.ReferenceInput) (*entity.Reference, error) {
	ref, err := entity.NewReference(studentID, in, m.clock())
	if err != nil {
		return nil, err
	}
	if err := m.eligibility.Check(ctx, ref.LecturerID, ref.InstitutionID); err != nil {
		return nil, err
	}
	if err := m.references.Create(ctx, ref); err != nil {
		return nil, err
	}

	metrics.ReferenceTransitions.WithLabelValues(string(ref.Status)).Inc()
	m.log.WithFields(logrus.Fields{
		"reference_id": ref.ID,
		"student_id":   ref.StudentID,
		"lecturer_id":  ref.LecturerID,
	}).Info("reference requested")
	return ref, nil
}

func (m *Manager) Find(ctx context.Context, id uuid.UUID) (*entity.Reference, error) {
	return m.references.FindByID(ctx, id)
}

func (m *Manager) ListForUser(ctx context.Context, userID uuid.UUID) ([]*entity.Reference, error) {
	return m.references.FindByUserID(ctx, userID)
}

func (m *Manager) Documents(ctx context.Context, referenceID uuid.UUID) ([]*entity.Document, error) {
	return m.documents.FindByReferenceID(ctx, referenceID)
}

func (m *Manager) MarkInProgress(ctx context.Context, ref *entity.Reference) error {
	expected := ref.Status
	if err := ref.StartProgress(m.clock()); err != nil {
		return err
	}
	return m.save(ctx, ref, expected)
}

// Complete сохраняет итоговый документ. Неоплаченная рекомендация с ненулевой ценой
// завершиться не может.
func (m *Manager) Complete(ctx context.Context, ref *entity.Reference, documentPath string) error {
	price, err := m.settings.CurrentPrice(ctx, ref.Class())
	if err != nil {
		if !apperror.IsNotFound(err) {
			return err
		}
		// Без строки настроек платформа ничего не берёт.
		price = valueobject.Zero()
	}

	expected := ref.Status
	if err := ref.Complete(documentPath, price, m.clock()); err != nil {
		return err
	}
	return m.save(ctx, ref, expected)
}

// CompleteWithUpload сохраняет загруженный файл и завершает рекомендацию с его путём.
// Если переход не удался, файл удаляется.
func (m *Manager) CompleteWithUpload(ctx context.Context, ref *entity.Reference, upload entity.Upload) error {
	if err := ref.AcceptsDocuments(); err != nil {
		return err
	}

	body, err := upload.Open()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, "could not read the uploaded document")
	}
	defer body.Close()

	path, err := m.storage.Store(ctx, ref.LecturerID, upload.Name, body)
	if err != nil {
		if apperror.IsValidation(err) {
			return err
		}
		return apperror.Wrap(err, apperror.ErrCodeDependencyFailure, "could not store the reference document")
	}

	if err := m.Complete(ctx, ref, path); err != nil {
		if _, delErr := m.storage.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			m.log.WithError(delErr).WithField("path", path).Error("failed to remove unused reference document")
		}
		return err
	}
	return nil
}

func (m *Manager) Reject(ctx context.Context, ref *entity.Reference, reason string) error {
	expected := ref.Status
	if err := ref.Reject(reason, m.clock()); err != nil {
		return err
	}
	return m.save(ctx, ref, expected)
}

// MarkPaid идемпотентен: повторная отметка оплаты - успешный no-op.
func (m *Manager) MarkPaid(ctx context.Context, id uuid.UUID) (*entity.Reference, error) {
	ref, err := m.references.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ref.MarkPaid(m.clock()) {
		return ref, nil
	}
	if err := m.references.MarkPaid(ctx, id); err != nil {
		return nil, err
	}
	m.log.WithField("reference_id", id).Info("reference payment recorded")
	return ref, nil
}

// AttachDocuments добавляет вспомогательные файлы к незавершённой рекомендации.
func (m *Manager) AttachDocuments(ctx context.Context, uploaderID uuid.UUID, ref *entity.Reference, uploads []entity.Upload) ([]*entity.Document, []entity.Warning, error) {
	if err := ref.AcceptsDocuments(); err != nil {
		return nil, nil, err
	}
	if len(uploads) == 0 {
		return nil, nil, apperror.FieldError("documents", "at least one document is required")
	}
	docs, warnings := m.attacher.Attach(ctx, entity.ReferenceDocumentOwner(uploaderID, ref.ID), uploads)
	return docs, warnings, nil
}

func (m *Manager) save(ctx context.Context, ref *entity.Reference, expected valueobject.ReferenceStatus) error {
	if err := m.references.UpdateStatus(ctx, ref, expected); err != nil {
		return err
	}
	metrics.ReferenceTransitions.WithLabelValues(string(ref.Status)).Inc()
	m.log.WithFields(logrus.Fields{
		"reference_id": ref.ID,
		"from":         expected,
		"to":           ref.Status,
	}).Info("reference status changed")
	return nil
}
