package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

const maxRequestBody = 64 << 10

type scheduleGenerator interface {
	Generate(ctx context.Context, caller service.Caller, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	GenerateOther(ctx context.Context, caller service.Caller, req dto.GenerateOtherScheduleRequest) (*dto.GenerateScheduleResponse, error)
}

type scheduleExporter interface {
	Export(ctx context.Context, caller service.Caller, req dto.ExportScheduleRequest, format string) (*service.ExportFile, error)
}

// ScheduleGeneratorHandler exposes schedule generation endpoints.
type ScheduleGeneratorHandler struct {
	service  scheduleGenerator
	exporter scheduleExporter
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc scheduleGenerator, exporter scheduleExporter) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc, exporter: exporter}
}

// Generate godoc
// @Summary Generate every conflict-free schedule for a class
// @Description Resolves the class's core courses, minus excluded core courses, plus up to two electives, and enumerates every weekly schedule without (day, slot) clashes.
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateScheduleRequest true "Generation request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if !bindJSON(c, &req, "invalid schedule generation payload") {
		return
	}
	result, err := h.service.Generate(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateOther godoc
// @Summary Generate schedules for a free selection of courses
// @Description "Other" mode: courses may come from any published term; at most two of them may be electives.
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateOtherScheduleRequest true "Course selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedules/generate/other [post]
func (h *ScheduleGeneratorHandler) GenerateOther(c *gin.Context) {
	var req dto.GenerateOtherScheduleRequest
	if !bindJSON(c, &req, "invalid schedule generation payload") {
		return
	}
	result, err := h.service.GenerateOther(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Download one generated schedule
// @Description Regenerates the schedule from the same request and renders candidate `index`.
// @Tags Schedules
// @Accept json
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string true "csv, pdf, xlsx or ics"
// @Param payload body dto.ExportScheduleRequest true "Export request"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /schedules/export [post]
func (h *ScheduleGeneratorHandler) Export(c *gin.Context) {
	var req dto.ExportScheduleRequest
	if !bindJSON(c, &req, "invalid schedule export payload") {
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), callerFromContext(c), req, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}
