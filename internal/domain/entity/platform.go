package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
)

// PlatformSetting - единственная строка с ценами платформы.
type PlatformSetting struct {
	ReferenceRequestPrice        valueobject.Money
	ExpressReferenceRequestPrice valueobject.Money
	UpdatedAt                    time.Time
}

func (s *PlatformSetting) PriceFor(class valueobject.RequestClass) valueobject.Money {
	if class == valueobject.RequestClassExpress {
		return s.ExpressReferenceRequestPrice
	}
	return s.ReferenceRequestPrice
}

// Actor - аутентифицированный пользователь, от имени которого выполняется действие.
type Actor struct {
	ID   uuid.UUID
	Role valueobject.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

const (
	WarningAttachmentFailed   = "attachment_failed"
	WarningAttachmentRejected = "attachment_rejected"
	WarningChallengeNotSent   = "verification_email_not_sent"
)

// Warning - побочный эффект, который не удался, хотя основное действие выполнено.
type Warning struct {
	Code    string `json:"code"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
}

// MailMessage - письмо для внешнего почтового сервиса.
type MailMessage struct {
	Template  string
	Subject   string
	Recipient string
	Data      map[string]string
}
