package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
)

func TestReferencePolicies(t *testing.T) {
	ref := &entity.Reference{StudentID: uuid.New(), LecturerID: uuid.New()}
	student := entity.Actor{ID: ref.StudentID, Role: valueobject.RoleStudent}
	lecturer := entity.Actor{ID: ref.LecturerID, Role: valueobject.RoleLecturer}
	outsider := entity.Actor{ID: uuid.New(), Role: valueobject.RoleStudent}
	admin := entity.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin}
	partyAdmin := entity.Actor{ID: ref.LecturerID, Role: valueobject.RoleAdmin}

	assert.True(t, CanViewReference(student, ref))
	assert.True(t, CanViewReference(admin, ref))
	assert.False(t, CanViewReference(outsider, ref))

	assert.True(t, CanAdvanceReference(lecturer, ref))
	assert.False(t, CanAdvanceReference(student, ref))
	assert.False(t, CanAdvanceReference(admin, ref))

	assert.True(t, CanAttachToReference(student, ref))
	assert.False(t, CanAttachToReference(admin, ref))

	assert.True(t, CanOpenDispute(lecturer, ref))
	assert.False(t, CanOpenDispute(admin, ref))

	assert.True(t, CanAdjudicate(admin, ref))
	assert.False(t, CanAdjudicate(partyAdmin, ref))
	assert.False(t, CanAdjudicate(student, ref))

	assert.True(t, CanPostDisputeMessage(admin, ref))
	assert.True(t, CanViewDispute(student, ref))
	assert.False(t, CanViewDispute(outsider, ref))
}

func TestCanManageAttendance(t *testing.T) {
	record := &entity.InstitutionAttended{UserID: uuid.New()}
	assert.True(t, CanManageAttendance(entity.Actor{ID: record.UserID}, record))
	assert.False(t, CanManageAttendance(entity.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin}, record))
}
