package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/tertab-backend/internal/interface/http/dto"
	"github.com/ignatzorin/tertab-backend/internal/interface/http/response"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/usecase/workflow"
)

type InstitutionHandler struct {
	workflow *workflow.Orchestrator
}

func NewInstitutionHandler(orchestrator *workflow.Orchestrator) *InstitutionHandler {
	return &InstitutionHandler{workflow: orchestrator}
}

func (h *InstitutionHandler) List(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	listing, err := h.workflow.ListInstitutions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToInstitutionListResponse(listing.Records, listing.Settings))
}

// Submit принимает multipart-форму: поля записи и файлы в поле documents.
func (h *InstitutionHandler) Submit(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.SubmitInstitutionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	in, err := req.ToInput()
	if err != nil {
		response.Error(c, err)
		return
	}

	uploads, err := formUploads(c, documentsField)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.workflow.SubmitInstitution(c.Request.Context(), actor, in, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.WithWarnings(c, http.StatusCreated, dto.ToInstitutionResponse(result.Outcome), result.Warnings)
}

func (h *InstitutionHandler) ResendVerification(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.workflow.ResendVerification(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.WithWarnings(c, http.StatusOK, dto.ToInstitutionResponse(result.Outcome), result.Warnings)
}

// Verify - ссылка из письма, аутентификация не требуется.
func (h *InstitutionHandler) Verify(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Error(c, apperror.FieldError("token", "the token field is required"))
		return
	}

	record, err := h.workflow.VerifyInstitutionEmail(c.Request.Context(), id, token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToInstitutionResponse(record))
}

func (h *InstitutionHandler) Delete(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.workflow.DeleteInstitution(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
