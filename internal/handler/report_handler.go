package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/internal/service"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

type reportService interface {
	Attendance(ctx context.Context, filter models.AttendanceFilter, format string) (*service.ReportFile, error)
}

// ReportHandler serves downloadable reports.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// AttendanceCSV godoc
// @Summary Export attendance as CSV
// @Tags Reports
// @Produce text/csv
// @Param student_id query string false "Student"
// @Param campus_id query string false "Campus"
// @Param status query string false "Status"
// @Param date_from query string false "From date (YYYY-MM-DD)"
// @Param date_to query string false "To date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /reports/attendance.csv [get]
func (h *ReportHandler) AttendanceCSV(c *gin.Context) {
	h.attendance(c, "csv")
}

// AttendanceXLSX godoc
// @Summary Export attendance as an Excel workbook
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param student_id query string false "Student"
// @Param campus_id query string false "Campus"
// @Param status query string false "Status"
// @Param date_from query string false "From date (YYYY-MM-DD)"
// @Param date_to query string false "To date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /reports/attendance.xlsx [get]
func (h *ReportHandler) AttendanceXLSX(c *gin.Context) {
	h.attendance(c, "xlsx")
}

func (h *ReportHandler) attendance(c *gin.Context, format string) {
	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Attendance(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Report-Rows", strconv.Itoa(file.Rows))
	response.Attachment(c, file.ContentType, file.Filename, file.Content)
}
