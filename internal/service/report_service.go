package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/export"
)

type attendanceReportReader interface {
	ReportRows(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceReportRow, error)
}

// TableRenderer encodes a dataset into a downloadable file format.
type TableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ReportFile is a rendered report ready for download.
type ReportFile struct {
	Filename    string
	ContentType string
	Content     []byte
	Rows        int
}

// ReportService renders tabular exports.
type ReportService struct {
	attendance attendanceReportReader
	renderers  map[string]TableRenderer
	location   *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// NewReportService constructs the report service. Renderers are keyed by their
// extension; CSV and XLSX are registered when none are supplied.
func NewReportService(attendance attendanceReportReader, location *time.Location, logger *zap.Logger, renderers ...TableRenderer) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(renderers) == 0 {
		renderers = []TableRenderer{export.NewCSVExporter(true), export.NewXLSXExporter("Attendance")}
	}
	if location == nil {
		location = time.UTC
	}
	byExt := make(map[string]TableRenderer, len(renderers))
	for _, r := range renderers {
		byExt[r.Extension()] = r
	}
	return &ReportService{
		attendance: attendance,
		renderers:  byExt,
		location:   location,
		logger:     logger,
		now:        time.Now,
	}
}

var attendanceReportHeaders = []string{
	"date", "student_number", "student_name", "clock_in", "clock_out",
	"actual_hours", "theory_hours", "practical_hours", "status", "is_correction",
}

// Attendance renders attendance rows matching filter in the requested format ("csv" or "xlsx").
func (s *ReportService) Attendance(ctx context.Context, filter models.AttendanceFilter, format string) (*ReportFile, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	rows, err := s.attendance.ReportRows(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance report")
	}

	data := export.Dataset{Headers: attendanceReportHeaders}
	for _, row := range rows {
		data.Append(
			row.Date.Format("2006-01-02"),
			row.StudentNumber,
			row.StudentName,
			s.timestamp(row.ClockInTime),
			s.timestamp(row.ClockOutTime),
			formatHours(row.ActualHours),
			formatHours(row.TheoryHours),
			formatHours(row.PracticalHours),
			string(row.Status),
			strconv.FormatBool(row.IsCorrection),
		)
	}
	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render attendance report")
	}
	s.logger.Debug("attendance report rendered", zap.String("format", format), zap.Int("rows", len(rows)))
	return &ReportFile{
		Filename:    fmt.Sprintf("attendance_%s.%s", s.now().In(s.location).Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
		Rows:        len(rows),
	}, nil
}

func (s *ReportService) timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(s.location).Format("2006-01-02 15:04")
}
