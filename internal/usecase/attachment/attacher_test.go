package attachment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/testutil/memstore"
	"github.com/ignatzorin/tertab-backend/internal/usecase/attachment"
)

func TestAttach_StoresEveryUpload(t *testing.T) {
	store := memstore.New()
	files := memstore.NewStorage()
	a := attachment.NewAttacher(files, store.Documents(), time.Second, 2)

	userID, attendanceID := uuid.New(), uuid.New()
	owner := entity.InstitutionDocumentOwner(userID, attendanceID)
	uploads := []entity.Upload{
		memstore.Upload("a.pdf", []byte("%PDF-1.4 a")),
		memstore.Upload("b.pdf", []byte("%PDF-1.4 b")),
		memstore.Upload("c.png", []byte("png")),
	}

	docs, warnings := a.Attach(context.Background(), owner, uploads)

	assert.Empty(t, warnings)
	require.Len(t, docs, 3)
	for i, doc := range docs {
		assert.Equal(t, uploads[i].Name, doc.Name, "documents keep upload order")
		assert.Equal(t, userID, doc.UserID)
		require.NotNil(t, doc.InstitutionAttendedID)
		assert.Equal(t, attendanceID, *doc.InstitutionAttendedID)
		assert.Nil(t, doc.ReferenceID)
		assert.True(t, files.Has(doc.Path))
	}
	assert.Equal(t, 3, store.DocumentCount(attendanceID))
}

func TestAttach_FailuresBecomeWarnings(t *testing.T) {
	store := memstore.New()
	files := memstore.NewStorage()
	files.FailStore["virus.exe"] = apperror.FieldError("document", "unsupported file type")
	files.FailStore["slow.pdf"] = errors.New("disk unavailable")
	store.FailDocumentCreate["orphan.pdf"] = errors.New("insert failed")
	a := attachment.NewAttacher(files, store.Documents(), time.Second, 0)

	owner := entity.ReferenceDocumentOwner(uuid.New(), uuid.New())
	uploads := []entity.Upload{
		memstore.Upload("ok.pdf", []byte("ok")),
		memstore.Upload("virus.exe", []byte("MZ")),
		memstore.BrokenUpload("broken.pdf"),
		memstore.Upload("slow.pdf", []byte("slow")),
		memstore.Upload("orphan.pdf", []byte("orphan")),
	}

	docs, warnings := a.Attach(context.Background(), owner, uploads)

	require.Len(t, docs, 1)
	assert.Equal(t, "ok.pdf", docs[0].Name)

	require.Len(t, warnings, 4)
	assert.Equal(t, "virus.exe", warnings[0].Target)
	assert.Equal(t, entity.WarningAttachmentRejected, warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "unsupported file type")

	for _, w := range warnings[1:] {
		assert.Equal(t, entity.WarningAttachmentFailed, w.Code)
	}
	assert.Equal(t, "broken.pdf", warnings[1].Target)
	assert.Equal(t, "slow.pdf", warnings[2].Target)
	assert.Equal(t, "orphan.pdf", warnings[3].Target)

	// Файл без строки в базе удаляется из хранилища.
	assert.Equal(t, 1, files.Len())
	assert.True(t, files.Has(docs[0].Path))
}

func TestAttach_NoUploads(t *testing.T) {
	a := attachment.NewAttacher(memstore.NewStorage(), memstore.New().Documents(), 0, 1)
	docs, warnings := a.Attach(context.Background(), entity.ReferenceDocumentOwner(uuid.New(), uuid.New()), nil)
	assert.Nil(t, docs)
	assert.Nil(t, warnings)
}
