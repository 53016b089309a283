package handlers

import (
	"errors"
	"net/http"

	"scicat/internal/middleware"
	"scicat/internal/models"
	"scicat/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	catalog  service.CatalogService
	contacts service.ContactJobService
	links    service.LinkCheckService
}

func NewAdminHandler(catalog service.CatalogService, contacts service.ContactJobService, links service.LinkCheckService) *AdminHandler {
	return &AdminHandler{catalog: catalog, contacts: contacts, links: links}
}

func (h *AdminHandler) StartContactJob(c *gin.Context) {
	var input service.ContactJobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	job, err := h.contacts.Start(c.Request.Context(), input, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data":    job,
	})
}

func (h *AdminHandler) ContactJobStatus(c *gin.Context) {
	job, err := h.contacts.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, job)
}

func (h *AdminHandler) CancelContactJob(c *gin.Context) {
	job, err := h.contacts.Cancel(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrJobFinished) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "job_finished",
			"message": err.Error(),
			"data":    job,
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, job)
}

type visibilityRequest struct {
	Published *bool `json:"published" binding:"required"`
}

func (h *AdminHandler) SetVisibility(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "published flag is required")
		return
	}

	res, err := h.catalog.SetVisibility(c.Request.Context(), id, *req.Published)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, res)
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": category})
}

func (h *AdminHandler) CreateTerm(c *gin.Context) {
	var input service.TermInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	term, err := h.catalog.CreateTerm(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": term})
}

func (h *AdminHandler) CreateTeamMember(c *gin.Context) {
	var input service.TeamMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	member, err := h.catalog.CreateTeamMember(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": member})
}

func (h *AdminHandler) DeleteTeamMember(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.catalog.DeleteTeamMember(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) CheckLinks(c *gin.Context) {
	run, err := h.links.CheckLinks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, run)
}
