package handlers

import (
	"strings"

	"scicat/internal/service"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalog service.CatalogService
	search  service.SearchService
}

func NewCatalogHandler(catalog service.CatalogService, search service.SearchService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, search: search}
}

func (h *CatalogHandler) Categories(c *gin.Context) {
	tree, err := h.catalog.CategoryTree(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, tree)
}

func (h *CatalogHandler) CategoryResources(c *gin.Context) {
	page, limit := pagination(c)
	result, err := h.catalog.ListByCategory(c.Request.Context(), c.Param("slug"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

func (h *CatalogHandler) Resources(c *gin.Context) {
	page, limit := pagination(c)
	result, err := h.catalog.Browse(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

func (h *CatalogHandler) Resource(c *gin.Context) {
	detail, err := h.catalog.Detail(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, detail)
}

func (h *CatalogHandler) Search(c *gin.Context) {
	page, limit := pagination(c)
	result, err := h.search.Search(c.Request.Context(), c.Query("q"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

func (h *CatalogHandler) Terms(c *gin.Context) {
	terms, err := h.catalog.ListTerms(c.Request.Context(), strings.ToLower(c.Query("kind")))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, terms)
}

func (h *CatalogHandler) Team(c *gin.Context) {
	team, err := h.catalog.ListTeam(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, team)
}
