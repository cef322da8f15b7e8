// Package policy содержит правила доступа как чистые функции от (actor, entity).
package policy

import (
	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
)

// CanManageAttendance - удалять и переотправлять подтверждение может только владелец.
func CanManageAttendance(actor entity.Actor, record *entity.InstitutionAttended) bool {
	return record.IsOwnedBy(actor.ID)
}

// CanViewReference - участники рекомендации и администратор.
func CanViewReference(actor entity.Actor, ref *entity.Reference) bool {
	return ref.IsParty(actor.ID) || actor.IsAdmin()
}

// CanAdvanceReference - брать в работу, завершать и отклонять может только преподаватель рекомендации.
func CanAdvanceReference(actor entity.Actor, ref *entity.Reference) bool {
	return ref.LecturerID == actor.ID
}

// CanAttachToReference - вспомогательные файлы добавляют только участники.
func CanAttachToReference(actor entity.Actor, ref *entity.Reference) bool {
	return ref.IsParty(actor.ID)
}

// CanOpenDispute - спор открывает студент или преподаватель рекомендации.
func CanOpenDispute(actor entity.Actor, ref *entity.Reference) bool {
	return ref.IsParty(actor.ID)
}

// CanAdjudicate - разрешать спор может администратор, не являющийся участником рекомендации.
func CanAdjudicate(actor entity.Actor, ref *entity.Reference) bool {
	return actor.IsAdmin() && !ref.IsParty(actor.ID)
}

// CanViewDispute совпадает с правом писать в ветку.
func CanViewDispute(actor entity.Actor, ref *entity.Reference) bool {
	return CanPostDisputeMessage(actor, ref)
}

// CanPostDisputeMessage - участники пишут от своего имени, арбитр от имени платформы.
func CanPostDisputeMessage(actor entity.Actor, ref *entity.Reference) bool {
	return ref.IsParty(actor.ID) || CanAdjudicate(actor, ref)
}
