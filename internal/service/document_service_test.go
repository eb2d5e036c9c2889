package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/storage"
)

type stubStatements struct {
	statement *models.AccountStatement
}

func (s stubStatements) Statement(context.Context, string) (*models.AccountStatement, error) {
	return s.statement, nil
}

func newDocumentFixture(t *testing.T, store storage.BlobStore, students ...models.StudentDetail) (*DocumentService, *recordingAudit) {
	t.Helper()
	audit := &recordingAudit{}
	attendance := newFakeAttendanceRepo()
	in := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	out := in.Add(8 * time.Hour)
	require.NoError(t, attendance.Create(context.Background(), nil, &models.AttendanceRecord{
		StudentID: "stu-1", Date: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		ClockInTime: &in, ClockOutTime: &out, ActualHours: 8, TheoryHours: 2.4, PracticalHours: 5.6,
		Status: models.AttendanceStatusPresent,
	}))
	svc := NewDocumentService(DocumentServiceParams{
		Students:   newFakeStudentRepo(students...),
		Attendance: attendance,
		Milestones: NewMilestoneChecker(newFakeMilestoneRepo(), nil),
		Statements: stubStatements{statement: &models.AccountStatement{
			Account: models.StudentAccount{ID: "acct-1", StudentID: "stu-1", CurrentBalance: 1200},
			Charges: []models.Charge{{ID: "chg-1", Description: "Tuition", Amount: 1500}},
			Payments: []models.Payment{{ID: "pay-1", Amount: 300, Method: models.PaymentMethodCard,
				Status: models.PaymentStatusCompleted}},
		}},
		Store:  store,
		Signer: storage.NewSignedURLSigner("document-secret", time.Hour),
		Audit:  audit,
		Config: DocumentConfig{Institution: "Barber Academy"},
	})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, audit
}

func TestGenerateTranscriptInline(t *testing.T) {
	svc, audit := newDocumentFixture(t, nil, activeStudent("stu-1"))

	doc, err := svc.Generate(context.Background(), staffActor, models.DocumentTranscript, dto.DocumentRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, "transcript_BA-stu-1_20240501_120000.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Empty(t, doc.DownloadURL)

	payload, err := base64.StdEncoding.DecodeString(doc.ContentBase64)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
	assert.Equal(t, []string{models.AuditActionDocumentGenerate}, audit.actions())
}

func TestGenerateCertificateRequiresCompletion(t *testing.T) {
	svc, audit := newDocumentFixture(t, nil, activeStudent("stu-1"))
	_, err := svc.Generate(context.Background(), staffActor, models.DocumentCertificate, dto.DocumentRequest{StudentID: "stu-1"})
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
	assert.Empty(t, audit.actions())

	done := activeStudent("stu-2")
	done.TotalHoursCompleted = 1500
	svc, _ = newDocumentFixture(t, nil, done)
	doc, err := svc.Generate(context.Background(), staffActor, models.DocumentCertificate, dto.DocumentRequest{StudentID: "stu-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ContentBase64)
}

func TestGenerateUnknownStudent(t *testing.T) {
	svc, _ := newDocumentFixture(t, nil)
	_, err := svc.Generate(context.Background(), staffActor, models.DocumentStatement, dto.DocumentRequest{StudentID: "missing"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestGeneratePersistedStatementAndDownload(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc, _ := newDocumentFixture(t, store, activeStudent("stu-1"))

	doc, err := svc.Generate(context.Background(), staffActor, models.DocumentStatement, dto.DocumentRequest{StudentID: "stu-1", Persist: true})
	require.NoError(t, err)
	assert.Empty(t, doc.ContentBase64)
	assert.Equal(t, "documents/stu-1/statement_BA-stu-1_20240501_120000.pdf", doc.StorageKey)
	require.NotNil(t, doc.ExpiresAt)
	require.True(t, strings.HasPrefix(doc.DownloadURL, "/api/v1/documents/download/"))

	token := strings.TrimPrefix(doc.DownloadURL, "/api/v1/documents/download/")
	data, name, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "statement_BA-stu-1_20240501_120000.pdf", name)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, _, err = svc.Download(context.Background(), token+"x")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGeneratePersistWithoutStorage(t *testing.T) {
	svc, _ := newDocumentFixture(t, nil, activeStudent("stu-1"))
	_, err := svc.Generate(context.Background(), staffActor, models.DocumentTranscript, dto.DocumentRequest{StudentID: "stu-1", Persist: true})
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}
