package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

const dateLayout = "2006-01-02"

// SubmitInstitutionRequest приходит multipart-формой вместе с файлами documents.
type SubmitInstitutionRequest struct {
	InstitutionID string  `form:"institution_id" binding:"required,uuid"`
	StateID       string  `form:"state_id" binding:"required,uuid"`
	Type          string  `form:"type" binding:"required,oneof=student lecturer staff alumni"`
	FieldOfStudy  *string `form:"field_of_study" binding:"omitempty,max=255"`
	Position      *string `form:"position" binding:"omitempty,max=255"`
	StartDate     *string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate       *string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
	SchoolEmail   *string `form:"school_email" binding:"omitempty,email,max=255"`
}

func (r SubmitInstitutionRequest) ToInput() (entity.AttendanceInput, error) {
	fields := make(map[string]string)
	in := entity.AttendanceInput{
		Type:         r.Type,
		FieldOfStudy: r.FieldOfStudy,
		Position:     r.Position,
		SchoolEmail:  r.SchoolEmail,
	}

	var err error
	if in.InstitutionID, err = uuid.Parse(r.InstitutionID); err != nil {
		fields["institution_id"] = "the institution id must be a valid identifier"
	}
	if in.StateID, err = uuid.Parse(r.StateID); err != nil {
		fields["state_id"] = "the state id must be a valid identifier"
	}
	if in.StartDate, err = parseDate(r.StartDate); err != nil {
		fields["start_date"] = "the start date must be a date in format " + dateLayout
	}
	if in.EndDate, err = parseDate(r.EndDate); err != nil {
		fields["end_date"] = "the end date must be a date in format " + dateLayout
	}

	if len(fields) > 0 {
		return entity.AttendanceInput{}, apperror.Validation(fields)
	}
	return in, nil
}

func parseDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type DocumentResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func ToDocumentResponses(docs []*entity.Document) []DocumentResponse {
	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, DocumentResponse{
			ID:        doc.ID,
			Name:      doc.Name,
			Path:      doc.Path,
			Type:      string(doc.Type),
			CreatedAt: doc.CreatedAt,
		})
	}
	return responses
}

// InstitutionResponse не раскрывает токен подтверждения и его хэш.
type InstitutionResponse struct {
	ID            uuid.UUID          `json:"id"`
	UserID        uuid.UUID          `json:"user_id"`
	InstitutionID uuid.UUID          `json:"institution_id"`
	StateID       uuid.UUID          `json:"state_id"`
	Type          string             `json:"type"`
	FieldOfStudy  *string            `json:"field_of_study"`
	Position      *string            `json:"position"`
	StartDate     *string            `json:"start_date"`
	EndDate       *string            `json:"end_date"`
	SchoolEmail   *string            `json:"school_email"`
	Status        string             `json:"status"`
	Documents     []DocumentResponse `json:"documents"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func ToInstitutionResponse(a *entity.InstitutionAttended) InstitutionResponse {
	return InstitutionResponse{
		ID:            a.ID,
		UserID:        a.UserID,
		InstitutionID: a.InstitutionID,
		StateID:       a.StateID,
		Type:          string(a.Type),
		FieldOfStudy:  a.FieldOfStudy,
		Position:      a.Position,
		StartDate:     formatDate(a.StartDate),
		EndDate:       formatDate(a.EndDate),
		SchoolEmail:   a.SchoolEmail,
		Status:        string(a.Status),
		Documents:     ToDocumentResponses(a.Documents),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

type MoneyResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func ToMoneyResponse(m valueobject.Money) MoneyResponse {
	return MoneyResponse{Amount: m.Amount.StringFixed(2), Currency: m.Currency}
}

type PricesResponse struct {
	ReferenceRequestPrice        MoneyResponse `json:"reference_request_price"`
	ExpressReferenceRequestPrice MoneyResponse `json:"express_reference_request_price"`
}

type InstitutionListResponse struct {
	Institutions []InstitutionResponse `json:"institutions"`
	Prices       *PricesResponse       `json:"prices"`
}

func ToInstitutionListResponse(records []*entity.InstitutionAttended, settings *entity.PlatformSetting) InstitutionListResponse {
	resp := InstitutionListResponse{Institutions: make([]InstitutionResponse, 0, len(records))}
	for _, record := range records {
		resp.Institutions = append(resp.Institutions, ToInstitutionResponse(record))
	}
	if settings != nil {
		resp.Prices = &PricesResponse{
			ReferenceRequestPrice:        ToMoneyResponse(settings.ReferenceRequestPrice),
			ExpressReferenceRequestPrice: ToMoneyResponse(settings.ExpressReferenceRequestPrice),
		}
	}
	return resp
}
