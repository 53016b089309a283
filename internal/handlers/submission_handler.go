package handlers

import (
	"net/http"

	"scicat/internal/middleware"
	"scicat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type SubmissionHandler struct {
	service service.SubmissionService
}

func NewSubmissionHandler(service service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// Submit stores the submission together with the raw request body.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}

	var input service.SubmissionInput
	if err := binding.JSON.BindBody(raw, &input); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	sub, err := h.service.Submit(c.Request.Context(), input, raw)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "submission received",
		"data":    sub,
	})
}

func (h *SubmissionHandler) List(c *gin.Context) {
	page, limit := pagination(c)
	result, err := h.service.List(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

func (h *SubmissionHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	sub, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, sub)
}

func (h *SubmissionHandler) Transition(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	var input service.TransitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	sub, err := h.service.Transition(c.Request.Context(), id, input, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, sub)
}

func (h *SubmissionHandler) ProcessReminders(c *gin.Context) {
	run, err := h.service.ProcessReminders(c.Request.Context(), nowUTC())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, run)
}
