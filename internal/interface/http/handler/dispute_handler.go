package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/tertab-backend/internal/interface/http/dto"
	"github.com/ignatzorin/tertab-backend/internal/interface/http/response"
	"github.com/ignatzorin/tertab-backend/internal/usecase/workflow"
)

type DisputeHandler struct {
	workflow *workflow.Orchestrator
}

func NewDisputeHandler(orchestrator *workflow.Orchestrator) *DisputeHandler {
	return &DisputeHandler{workflow: orchestrator}
}

// Open открывает спор по рекомендации :id.
func (h *DisputeHandler) Open(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	referenceID, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	d, err := h.workflow.OpenDispute(c.Request.Context(), actor, referenceID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) ListForReference(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	referenceID, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	disputes, err := h.workflow.ListDisputes(c.Request.Context(), actor, referenceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDisputeResponses(disputes))
}

func (h *DisputeHandler) Get(c *gin.Context) {
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

	d, err := h.workflow.GetDispute(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) PostMessage(c *gin.Context) {
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

	var req dto.PostDisputeMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	msg, err := h.workflow.PostDisputeMessage(c.Request.Context(), actor, id, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToDisputeMessageResponse(msg))
}

func (h *DisputeHandler) Resolve(c *gin.Context) {
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

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	d, err := h.workflow.ResolveDispute(c.Request.Context(), actor, id, req.Resolution)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) Close(c *gin.Context) {
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

	d, err := h.workflow.CloseDispute(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDisputeResponse(d))
}
