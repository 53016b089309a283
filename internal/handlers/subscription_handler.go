package handlers

import (
	"net/http"

	"scicat/internal/service"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	service service.SubscriptionService
}

func NewSubscriptionHandler(service service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var input service.SubscribeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	sub, err := h.service.Subscribe(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "confirmation email sent",
		"data":    sub,
	})
}

func (h *SubscriptionHandler) Confirm(c *gin.Context) {
	sub, err := h.service.Confirm(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, sub)
}

func (h *SubscriptionHandler) Update(c *gin.Context) {
	var input service.PreferencesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	sub, err := h.service.UpdatePreferences(c.Request.Context(), c.Param("token"), input)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, sub)
}

func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	if err := h.service.Unsubscribe(c.Request.Context(), c.Param("token")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "unsubscribed",
	})
}

func (h *SubscriptionHandler) RunDigests(c *gin.Context) {
	run, err := h.service.RunDigests(c.Request.Context(), nowUTC())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, run)
}
