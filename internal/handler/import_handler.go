package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/response"
	"github.com/noah-isme/barber-academy-api/pkg/spreadsheet"
)

type importService interface {
	ImportStudents(ctx context.Context, actor models.Actor, sheet *spreadsheet.Sheet) (*models.ImportResult, error)
	ImportAttendance(ctx context.Context, actor models.Actor, sheet *spreadsheet.Sheet) (*models.ImportResult, error)
}

type importFunc func(ctx context.Context, actor models.Actor, sheet *spreadsheet.Sheet) (*models.ImportResult, error)

// ImportHandler accepts CSV and XLSX bulk uploads.
type ImportHandler struct {
	service  importService
	maxBytes int64
}

// NewImportHandler constructs ImportHandler. maxBytes bounds the uploaded file size.
func NewImportHandler(service importService, maxBytes int64) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &ImportHandler{service: service, maxBytes: maxBytes}
}

// Students godoc
// @Summary Import students from CSV or XLSX
// @Tags Imports
// @Accept mpfd
// @Produce json
// @Param file formData file true "Upload with first_name, last_name, email, program_code, campus_code columns"
// @Success 200 {object} response.Envelope
// @Router /imports/students [post]
func (h *ImportHandler) Students(c *gin.Context) {
	h.handle(c, h.service.ImportStudents)
}

// Attendance godoc
// @Summary Import attendance sessions from CSV or XLSX
// @Tags Imports
// @Accept mpfd
// @Produce json
// @Param file formData file true "Upload with student_number, date, clock_in, clock_out, status columns"
// @Success 200 {object} response.Envelope
// @Router /imports/attendance [post]
func (h *ImportHandler) Attendance(c *gin.Context) {
	h.handle(c, h.service.ImportAttendance)
}

func (h *ImportHandler) handle(c *gin.Context, run importFunc) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1024)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "upload exceeds size limit"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if header.Size > h.maxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "upload exceeds size limit"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to open upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	sheet, err := spreadsheet.Read(header.Filename, file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	result, err := run(c.Request.Context(), actorFromContext(c), sheet)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
