// Package memstore - потокобезопасные in-memory реализации репозиториев для тестов.
// Переходы статусов ведут себя как CAS в postgres-адаптерах.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

type Store struct {
	mu          sync.Mutex
	attendances map[uuid.UUID]entity.InstitutionAttended
	documents   map[uuid.UUID]entity.Document
	references  map[uuid.UUID]entity.Reference
	disputes    map[uuid.UUID]entity.Dispute
	messages    map[uuid.UUID][]entity.DisputeMessage
	settings    *entity.PlatformSetting

	// FailDocumentCreate заставляет Create документа падать для указанных имён.
	FailDocumentCreate map[string]error
	// FailDelete заставляет удаление записи об учёбе падать.
	FailDelete error
}

func New() *Store {
	return &Store{
		attendances:        make(map[uuid.UUID]entity.InstitutionAttended),
		documents:          make(map[uuid.UUID]entity.Document),
		references:         make(map[uuid.UUID]entity.Reference),
		disputes:           make(map[uuid.UUID]entity.Dispute),
		messages:           make(map[uuid.UUID][]entity.DisputeMessage),
		FailDocumentCreate: make(map[string]error),
	}
}

func (s *Store) Attendances() *AttendanceRepo { return &AttendanceRepo{s} }
func (s *Store) Documents() *DocumentRepo     { return &DocumentRepo{s} }
func (s *Store) References() *ReferenceRepo   { return &ReferenceRepo{s} }
func (s *Store) Disputes() *DisputeRepo       { return &DisputeRepo{s} }
func (s *Store) Settings() *SettingsRepo      { return &SettingsRepo{s} }

// SetPrices задаёт строку platform_settings.
func (s *Store) SetPrices(standard, express valueobject.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &entity.PlatformSetting{
		ReferenceRequestPrice:        standard,
		ExpressReferenceRequestPrice: express,
		UpdatedAt:                    time.Now(),
	}
}

// DocumentCount - число строк документов, ссылающихся на запись об учёбе.
func (s *Store) DocumentCount(attendanceID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.documents {
		if d.InstitutionAttendedID != nil && *d.InstitutionAttendedID == attendanceID {
			n++
		}
	}
	return n
}

type AttendanceRepo struct{ s *Store }

func (r *AttendanceRepo) Create(ctx context.Context, record *entity.InstitutionAttended) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *record
	cp.Documents = nil
	r.s.attendances[record.ID] = cp
	return nil
}

func (r *AttendanceRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.InstitutionAttended, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.attendances[id]
	if !ok {
		return nil, apperror.ErrAttendanceNotFound
	}
	return &rec, nil
}

func (r *AttendanceRepo) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.InstitutionAttended, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*entity.InstitutionAttended
	for _, rec := range r.s.attendances {
		if rec.UserID == userID {
			cp := rec
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *AttendanceRepo) SaveChallenge(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.attendances[id]
	if !ok {
		return apperror.ErrAttendanceNotFound
	}
	if rec.Status != valueobject.AttendanceStatusPending {
		return apperror.ErrStaleState
	}
	rec.VerificationTokenHash = &tokenHash
	rec.VerificationTokenExpiresAt = &expiresAt
	rec.UpdatedAt = now
	r.s.attendances[id] = rec
	return nil
}

func (r *AttendanceRepo) MarkVerified(ctx context.Context, id uuid.UUID, tokenHash string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.attendances[id]
	if !ok {
		return apperror.ErrAttendanceNotFound
	}
	if rec.Status != valueobject.AttendanceStatusPending || rec.VerificationTokenHash == nil || *rec.VerificationTokenHash != tokenHash {
		return apperror.ErrStaleState
	}
	rec.Status = valueobject.AttendanceStatusVerified
	rec.VerificationTokenHash = nil
	rec.VerificationTokenExpiresAt = nil
	rec.UpdatedAt = now
	r.s.attendances[id] = rec
	return nil
}

func (r *AttendanceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailDelete != nil {
		return r.s.FailDelete
	}
	if _, ok := r.s.attendances[id]; !ok {
		return apperror.ErrAttendanceNotFound
	}
	for docID, d := range r.s.documents {
		if d.InstitutionAttendedID != nil && *d.InstitutionAttendedID == id {
			delete(r.s.documents, docID)
		}
	}
	delete(r.s.attendances, id)
	return nil
}

func (r *AttendanceRepo) HasVerifiedLecturer(ctx context.Context, userID uuid.UUID, institutionID *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.attendances {
		if rec.UserID != userID || rec.Type != valueobject.AttendanceTypeLecturer || rec.Status != valueobject.AttendanceStatusVerified {
			continue
		}
		if institutionID == nil || rec.InstitutionID == *institutionID {
			return true, nil
		}
	}
	return false, nil
}

type DocumentRepo struct{ s *Store }

func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err, ok := r.s.FailDocumentCreate[doc.Name]; ok {
		return err
	}
	r.s.documents[doc.ID] = *doc
	return nil
}

func (r *DocumentRepo) FindByAttendanceID(ctx context.Context, attendanceID uuid.UUID) ([]*entity.Document, error) {
	return r.find(func(d entity.Document) bool {
		return d.InstitutionAttendedID != nil && *d.InstitutionAttendedID == attendanceID
	}), nil
}

func (r *DocumentRepo) FindByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*entity.Document, error) {
	return r.find(func(d entity.Document) bool {
		return d.ReferenceID != nil && *d.ReferenceID == referenceID
	}), nil
}

func (r *DocumentRepo) find(match func(entity.Document) bool) []*entity.Document {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*entity.Document
	for _, d := range r.s.documents {
		if match(d) {
			cp := d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

type ReferenceRepo struct{ s *Store }

func (r *ReferenceRepo) Create(ctx context.Context, ref *entity.Reference) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.references[ref.ID] = *ref
	return nil
}

func (r *ReferenceRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Reference, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.references[id]
	if !ok {
		return nil, apperror.ErrReferenceNotFound
	}
	return &ref, nil
}

func (r *ReferenceRepo) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Reference, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*entity.Reference
	for _, ref := range r.s.references {
		if ref.IsParty(userID) {
			cp := ref
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *ReferenceRepo) UpdateStatus(ctx context.Context, ref *entity.Reference, expected valueobject.ReferenceStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.references[ref.ID]
	if !ok {
		return apperror.ErrReferenceNotFound
	}
	if current.Status != expected {
		return apperror.ErrStaleState
	}
	current.Status = ref.Status
	current.RejectionReason = ref.RejectionReason
	current.DocumentPath = ref.DocumentPath
	current.UpdatedAt = ref.UpdatedAt
	r.s.references[ref.ID] = current
	return nil
}

func (r *ReferenceRepo) MarkPaid(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.references[id]
	if !ok {
		return apperror.ErrReferenceNotFound
	}
	ref.PaymentProcessed = true
	r.s.references[id] = ref
	return nil
}

type DisputeRepo struct{ s *Store }

func (r *DisputeRepo) Create(ctx context.Context, d *entity.Dispute, opening *entity.DisputeMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.disputes {
		if existing.ReferenceID == d.ReferenceID && existing.Status != valueobject.DisputeStatusClosed {
			return apperror.New(apperror.ErrCodeConflict, "reference already has an active dispute")
		}
	}
	cp := *d
	cp.Messages = nil
	r.s.disputes[d.ID] = cp
	r.s.messages[d.ID] = []entity.DisputeMessage{*opening}
	return nil
}

func (r *DisputeRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.disputes[id]
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	return &d, nil
}

func (r *DisputeRepo) FindByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*entity.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*entity.Dispute
	for _, d := range r.s.disputes {
		if d.ReferenceID == referenceID {
			cp := d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *DisputeRepo) FindActiveByReferenceID(ctx context.Context, referenceID uuid.UUID) (*entity.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.disputes {
		if d.ReferenceID == referenceID && d.Status != valueobject.DisputeStatusClosed {
			cp := d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *DisputeRepo) UpdateStatus(ctx context.Context, d *entity.Dispute, expected valueobject.DisputeStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.disputes[d.ID]
	if !ok {
		return apperror.ErrDisputeNotFound
	}
	if current.Status != expected {
		return apperror.ErrStaleState
	}
	cp := *d
	cp.Messages = nil
	r.s.disputes[d.ID] = cp
	return nil
}

func (r *DisputeRepo) AppendMessage(ctx context.Context, msg *entity.DisputeMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.disputes[msg.DisputeID]
	if !ok {
		return apperror.ErrDisputeNotFound
	}
	if d.Status != valueobject.DisputeStatusOpen {
		return apperror.ErrStaleState
	}
	r.s.messages[msg.DisputeID] = append(r.s.messages[msg.DisputeID], *msg)
	return nil
}

func (r *DisputeRepo) FindMessages(ctx context.Context, disputeID uuid.UUID) ([]*entity.DisputeMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := r.s.messages[disputeID]
	result := make([]*entity.DisputeMessage, len(stored))
	for i := range stored {
		cp := stored[i]
		result[i] = &cp
	}
	return result, nil
}

type SettingsRepo struct{ s *Store }

func (r *SettingsRepo) Get(ctx context.Context) (*entity.PlatformSetting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.settings == nil {
		return nil, apperror.ErrSettingsNotFound
	}
	cp := *r.s.settings
	return &cp, nil
}
