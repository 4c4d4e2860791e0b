package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type termBrowser interface {
	List(ctx context.Context, caller service.Caller, filter models.TermFilter) (*service.TermList, bool, error)
	Catalog(ctx context.Context, caller service.Caller, token string) (*models.TermCatalog, bool, error)
}

// TermHandler exposes the read-only catalog browse endpoints.
type TermHandler struct {
	service termBrowser
}

// NewTermHandler constructs a term handler.
func NewTermHandler(svc termBrowser) *TermHandler {
	return &TermHandler{service: svc}
}

// List godoc
// @Summary List terms
// @Description Students only see published terms.
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /terms [get]
func (h *TermHandler) List(c *gin.Context) {
	var filter models.TermFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	list, hit, err := h.service.List(c.Request.Context(), callerFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, list.Terms, &list.Pagination, middleware.ExtractMeta(c))
}

// Catalog godoc
// @Summary Browse one term
// @Description Classes of the term with their courses, components and sessions.
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Param token path string true "Term token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/{token}/catalog [get]
func (h *TermHandler) Catalog(c *gin.Context) {
	catalog, hit, err := h.service.Catalog(c.Request.Context(), callerFromContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, catalog, nil, middleware.ExtractMeta(c))
}
