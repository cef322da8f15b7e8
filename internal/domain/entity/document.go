package entity

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
)

// Document - файл, принадлежащий записи об учёбе или рекомендации.
// Ровно один из InstitutionAttendedID и ReferenceID заполнен.
type Document struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Path                  string
	Name                  string
	Type                  valueobject.DocumentType
	InstitutionAttendedID *uuid.UUID
	ReferenceID           *uuid.UUID
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DocumentOwner описывает, к какой записи прикрепляется файл.
type DocumentOwner struct {
	UserID                uuid.UUID
	Type                  valueobject.DocumentType
	InstitutionAttendedID *uuid.UUID
	ReferenceID           *uuid.UUID
}

func InstitutionDocumentOwner(userID, attendanceID uuid.UUID) DocumentOwner {
	return DocumentOwner{UserID: userID, Type: valueobject.DocumentTypeInstitution, InstitutionAttendedID: &attendanceID}
}

func ReferenceDocumentOwner(userID, referenceID uuid.UUID) DocumentOwner {
	return DocumentOwner{UserID: userID, Type: valueobject.DocumentTypeReference, ReferenceID: &referenceID}
}

func NewDocument(owner DocumentOwner, path, name string, now time.Time) *Document {
	return &Document{
		ID:                    uuid.New(),
		UserID:                owner.UserID,
		Path:                  path,
		Name:                  name,
		Type:                  owner.Type,
		InstitutionAttendedID: owner.InstitutionAttendedID,
		ReferenceID:           owner.ReferenceID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Upload - загруженный клиентом файл до сохранения в хранилище.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}
