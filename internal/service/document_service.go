package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/export"
	"github.com/noah-isme/barber-academy-api/pkg/storage"
)

const pdfContentType = "application/pdf"

type documentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type attendanceHistoryReader interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
}

type statementReader interface {
	Statement(ctx context.Context, studentID string) (*models.AccountStatement, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// DocumentConfig tunes document generation.
type DocumentConfig struct {
	APIPrefix   string
	Institution string
	Location    *time.Location
}

// DocumentService renders transcripts, certificates and financial statements
// and optionally stores them behind expiring download links.
type DocumentService struct {
	students   documentStudentReader
	attendance attendanceHistoryReader
	milestones milestoneLister
	statements statementReader
	pdf        pdfRenderer
	store      storage.BlobStore
	signer     *storage.SignedURLSigner
	audit      AuditRecorder
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        DocumentConfig
	now        func() time.Time
}

// DocumentServiceParams groups constructor dependencies.
type DocumentServiceParams struct {
	Students   documentStudentReader
	Attendance attendanceHistoryReader
	Milestones milestoneLister
	Statements statementReader
	PDF        pdfRenderer
	Store      storage.BlobStore
	Signer     *storage.SignedURLSigner
	Audit      AuditRecorder
	Metrics    *MetricsService
	Logger     *zap.Logger
	Config     DocumentConfig
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(params DocumentServiceParams) *DocumentService {
	cfg := params.Config
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	pdf := params.PDF
	if pdf == nil {
		pdf = export.NewPDFExporter(cfg.Institution)
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	audit := params.Audit
	if audit == nil {
		audit = noopAudit{}
	}
	return &DocumentService{
		students:   params.Students,
		attendance: params.Attendance,
		milestones: params.Milestones,
		statements: params.Statements,
		pdf:        pdf,
		store:      params.Store,
		signer:     params.Signer,
		audit:      audit,
		metrics:    params.Metrics,
		validator:  validator.New(),
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Generate renders the requested document kind for a student.
func (s *DocumentService) Generate(ctx context.Context, actor models.Actor, kind models.DocumentKind, req dto.DocumentRequest) (*models.GeneratedDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid document payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}

	var doc export.Document
	switch kind {
	case models.DocumentTranscript:
		doc, err = s.transcript(ctx, student)
	case models.DocumentCertificate:
		doc, err = s.certificate(student)
	case models.DocumentStatement:
		doc, err = s.statement(ctx, student)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document kind")
	}
	if err != nil {
		return nil, err
	}

	payload, err := s.pdf.Render(doc)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render document")
	}
	s.metrics.DocumentRendered(string(kind))

	generated := &models.GeneratedDocument{
		Kind:        kind,
		Filename:    documentFilename(kind, student.StudentNumber, s.now()),
		ContentType: pdfContentType,
	}
	if req.Persist {
		if err := s.persist(ctx, generated, student.ID, payload); err != nil {
			return nil, err
		}
	} else {
		generated.ContentBase64 = base64.StdEncoding.EncodeToString(payload)
	}

	s.audit.Record(actor, models.AuditActionDocumentGenerate, "student", student.ID, map[string]interface{}{
		"kind":    kind,
		"persist": req.Persist,
	})
	return generated, nil
}

func (s *DocumentService) persist(ctx context.Context, doc *models.GeneratedDocument, studentID string, payload []byte) error {
	if s.store == nil || s.signer == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "document storage is not configured")
	}
	key := fmt.Sprintf("documents/%s/%s", studentID, doc.Filename)
	if err := s.store.Put(ctx, key, payload, pdfContentType); err != nil {
		return appErrors.Internal(err, "failed to store document")
	}
	token, expiresAt, err := s.signer.Generate(key)
	if err != nil {
		return appErrors.Internal(err, "failed to sign document link")
	}
	doc.StorageKey = key
	doc.DownloadURL = fmt.Sprintf("%s/documents/download/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
	doc.ExpiresAt = &expiresAt
	return nil
}

// Download resolves a signed token into the stored document.
func (s *DocumentService) Download(ctx context.Context, token string) ([]byte, string, error) {
	if s.store == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	key, _, err := s.signer.Parse(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, "", appErrors.Wrap(err, appErrors.ErrGone.Code, appErrors.ErrGone.Status, "download link expired")
	case err != nil:
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download link")
	}
	reader, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "document not found")
	}
	defer reader.Close() //nolint:errcheck
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to read document")
	}
	name := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		name = key[idx+1:]
	}
	return data, name, nil
}

func (s *DocumentService) transcript(ctx context.Context, student *models.StudentDetail) (export.Document, error) {
	records, err := s.attendance.ListForStudent(ctx, student.ID)
	if err != nil {
		return export.Document{}, appErrors.Internal(err, "failed to load attendance history")
	}
	milestones, err := s.milestones.ListForStudent(ctx, student.ID)
	if err != nil {
		return export.Document{}, appErrors.Internal(err, "failed to load milestones")
	}

	table := &export.Dataset{Headers: []string{"Date", "Clock In", "Clock Out", "Hours", "Theory", "Practical", "Status"}}
	for _, r := range records {
		if r.IsCorrection && r.Status != models.AttendanceStatusPresent {
			continue
		}
		table.Append(
			r.Date.Format("2006-01-02"),
			s.clock(r.ClockInTime),
			s.clock(r.ClockOutTime),
			formatHours(r.ActualHours),
			formatHours(r.TheoryHours),
			formatHours(r.PracticalHours),
			string(r.Status),
		)
	}

	reached := make([]string, 0, len(milestones))
	for _, m := range milestones {
		reached = append(reached, fmt.Sprintf("%s on %s", strings.TrimPrefix(m.MilestoneType, "hours_")+" hours", m.AchievedAt.In(s.cfg.Location).Format("Jan 2, 2006")))
	}
	body := []string{}
	if len(reached) > 0 {
		body = append(body, "Milestones reached: "+strings.Join(reached, "; ")+".")
	}

	return export.Document{
		Title:    "Official Transcript",
		Subtitle: student.ProgramName,
		Fields:   s.studentFields(student),
		Body:     body,
		Table:    table,
		Footer:   "Generated " + s.now().In(s.cfg.Location).Format("January 2, 2006 15:04 MST"),
	}, nil
}

func (s *DocumentService) certificate(student *models.StudentDetail) (export.Document, error) {
	eligible := student.EnrollmentStatus == models.EnrollmentStatusGraduated ||
		(student.ProgramTotalHours > 0 && student.TotalHoursCompleted >= student.ProgramTotalHours)
	if !eligible {
		return export.Document{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has not completed the program")
	}
	return export.Document{
		Title:     "Certificate of Completion",
		Subtitle:  "This certifies that",
		Landscape: true,
		Body: []string{
			student.FullName(),
			fmt.Sprintf("has completed %s clock hours in the %s program.", formatHours(student.TotalHoursCompleted), student.ProgramName),
			"Awarded " + s.now().In(s.cfg.Location).Format("January 2, 2006"),
		},
		Footer: "Student number " + student.StudentNumber,
	}, nil
}

func (s *DocumentService) statement(ctx context.Context, student *models.StudentDetail) (export.Document, error) {
	stmt, err := s.statements.Statement(ctx, student.ID)
	if err != nil {
		return export.Document{}, err
	}
	table := &export.Dataset{Headers: []string{"Date", "Description", "Charge", "Payment", "Status"}}
	for _, c := range stmt.Charges {
		status := "posted"
		if c.IsVoided {
			status = "voided"
		}
		table.Append(c.CreatedAt.In(s.cfg.Location).Format("2006-01-02"), c.Description, formatMoney(c.Amount), "", status)
	}
	for _, p := range stmt.Payments {
		label := "Payment (" + string(p.Method) + ")"
		amount := formatMoney(p.Amount)
		if p.IsRefund {
			label = "Refund (" + string(p.Method) + ")"
			amount = "-" + amount
		}
		table.Append(p.CreatedAt.In(s.cfg.Location).Format("2006-01-02"), label, "", amount, string(p.Status))
	}
	fields := append(s.studentFields(student), export.Field{Label: "Current balance", Value: formatMoney(stmt.Account.CurrentBalance)})
	return export.Document{
		Title:  "Financial Statement",
		Fields: fields,
		Table:  table,
		Footer: "Balances reflect completed payments only.",
	}, nil
}

func (s *DocumentService) studentFields(student *models.StudentDetail) []export.Field {
	return []export.Field{
		{Label: "Student", Value: student.FullName()},
		{Label: "Student number", Value: student.StudentNumber},
		{Label: "Program", Value: student.ProgramName},
		{Label: "Campus", Value: student.CampusName},
		{Label: "Hours completed", Value: fmt.Sprintf("%s of %s", formatHours(student.TotalHoursCompleted), formatHours(student.ProgramTotalHours))},
		{Label: "Theory / practical", Value: formatHours(student.TheoryHoursCompleted) + " / " + formatHours(student.PracticalHoursCompleted)},
	}
}

func (s *DocumentService) clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(s.cfg.Location).Format("15:04")
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatMoney(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func documentFilename(kind models.DocumentKind, studentNumber string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.pdf", kind, sanitizeFilename(studentNumber), now.UTC().Format("20060102_150405"))
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
