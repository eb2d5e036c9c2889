package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type fakeLeadRepo struct {
	leads map[string]*models.Lead
	seq   int
	// raced is stored on the next Create, which then fails as if another
	// request had inserted it first.
	raced *models.Lead
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[string]*models.Lead)}
}

func (f *fakeLeadRepo) Create(ctx context.Context, lead *models.Lead) error {
	if f.raced != nil {
		f.leads[f.raced.ID] = f.raced
		f.raced = nil
		return fmt.Errorf("create lead: %w", &pq.Error{Code: "23505", Constraint: "idx_leads_phone"})
	}
	f.seq++
	lead.ID = fmt.Sprintf("lead-%d", f.seq)
	clone := *lead
	f.leads[lead.ID] = &clone
	return nil
}

func (f *fakeLeadRepo) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *l
	return &clone, nil
}

func (f *fakeLeadRepo) FindByEmail(ctx context.Context, email string) (*models.Lead, error) {
	for _, l := range f.leads {
		if l.Email != nil && strings.EqualFold(*l.Email, email) {
			clone := *l
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLeadRepo) FindByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	for _, l := range f.leads {
		if l.Phone != nil && *l.Phone == phone {
			clone := *l
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLeadRepo) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.LeadStatus) error {
	l, ok := f.leads[id]
	if !ok {
		return sql.ErrNoRows
	}
	l.Status = status
	return nil
}

func (f *fakeLeadRepo) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	var out []models.Lead
	for _, l := range f.leads {
		out = append(out, *l)
	}
	return out, len(out), nil
}

type fakeApplicationRepo struct {
	apps map[string]*models.Application
	seq  int
}

func newFakeApplicationRepo() *fakeApplicationRepo {
	return &fakeApplicationRepo{apps: make(map[string]*models.Application)}
}

func (f *fakeApplicationRepo) Create(ctx context.Context, exec sqlx.ExtContext, app *models.Application) error {
	f.seq++
	app.ID = fmt.Sprintf("app-%d", f.seq)
	clone := *app
	f.apps[app.ID] = &clone
	return nil
}

func (f *fakeApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	a, ok := f.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *a
	return &clone, nil
}

func (f *fakeApplicationRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Application, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeApplicationRepo) UpdateState(ctx context.Context, exec sqlx.ExtContext, app *models.Application) error {
	clone := *app
	f.apps[app.ID] = &clone
	return nil
}

func (f *fakeApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	var out []models.Application
	for _, a := range f.apps {
		out = append(out, *a)
	}
	return out, len(out), nil
}

type recordingEnroller struct {
	requests []dto.EnrollSequenceRequest
	err      error
}

func (r *recordingEnroller) Enroll(ctx context.Context, actor models.Actor, req dto.EnrollSequenceRequest) (*models.EmailSequenceEnrollment, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &models.EmailSequenceEnrollment{ID: "enr", SequenceID: req.SequenceCode, ContactEmail: req.Email}, nil
}

type funnelFixture struct {
	svc      *FunnelService
	leads    *fakeLeadRepo
	apps     *fakeApplicationRepo
	students *fakeStudentRepo
	ledger   *fakeLedgerRepo
	enroller *recordingEnroller
	mock     sqlmock.Sqlmock
}

func newFunnelFixture(t *testing.T) *funnelFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	f := &funnelFixture{
		leads:    newFakeLeadRepo(),
		apps:     newFakeApplicationRepo(),
		students: newFakeStudentRepo(),
		ledger:   newFakeLedgerRepo(),
		enroller: &recordingEnroller{},
		mock:     mock,
	}
	f.svc = NewFunnelService(FunnelServiceParams{
		Leads:        f.leads,
		Applications: f.apps,
		Students:     f.students,
		Lookups:      newFakeProgramRepo(),
		Accounts:     NewLedgerService(f.ledger, f.students, tx, nil, nil, nil, nil),
		Sequences:    f.enroller,
		Tx:           tx,
	})
	return f
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+15551234567", NormalizePhone(" +1 (555) 123-4567 "))
	assert.Equal(t, "5551234567", NormalizePhone("555.123.4567"))
	assert.Equal(t, "", NormalizePhone("n/a"))
}

func TestCreateLeadDedupesByEmailAndPhone(t *testing.T) {
	f := newFunnelFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateLead(ctx, staffActor, dto.LeadRequest{FirstName: "Ana", Email: strPtr("Ana@Example.com"), Phone: strPtr("(555) 111-2222"), Source: "web"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "ana@example.com", *first.Lead.Email)
	assert.Equal(t, "5551112222", *first.Lead.Phone)
	require.Len(t, f.enroller.requests, 1)
	assert.Equal(t, models.SequenceLeadNurture, f.enroller.requests[0].SequenceCode)

	again, err := f.svc.CreateLead(ctx, staffActor, dto.LeadRequest{FirstName: "Ana", Email: strPtr("ana@example.com"), Source: "web"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Lead.ID, again.Lead.ID)

	byPhone, err := f.svc.CreateLead(ctx, staffActor, dto.LeadRequest{FirstName: "A", Phone: strPtr("555-111-2222"), Source: "walk_in"})
	require.NoError(t, err)
	assert.False(t, byPhone.Created)
	assert.Len(t, f.leads.leads, 1)
	assert.Len(t, f.enroller.requests, 1)

	_, err = f.svc.CreateLead(ctx, staffActor, dto.LeadRequest{FirstName: "Nobody", Source: "web"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCreateLeadReturnsLeadInsertedConcurrently(t *testing.T) {
	f := newFunnelFixture(t)
	phone := "5553334444"
	f.leads.raced = &models.Lead{ID: "lead-other", FirstName: "Caller", Phone: &phone, Status: models.LeadStatusLead}

	res, err := f.svc.CreateLead(context.Background(), staffActor, dto.LeadRequest{FirstName: "Caller", Phone: strPtr("555-333-4444"), Source: "phone_call"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "lead-other", res.Lead.ID)
	assert.Len(t, f.leads.leads, 1)
	assert.Empty(t, f.enroller.requests)
}

func TestCreateLeadIgnoresEnrollmentFailures(t *testing.T) {
	f := newFunnelFixture(t)
	f.enroller.err = appErrors.Clone(appErrors.ErrAlreadyEnrolled, "already enrolled")
	res, err := f.svc.CreateLead(context.Background(), staffActor, dto.LeadRequest{FirstName: "Ana", Email: strPtr("ana@example.com"), Source: "web"})
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestCreateLeadFromCall(t *testing.T) {
	f := newFunnelFixture(t)
	ctx := context.Background()
	call := dto.CallAnalyticsCall{
		CallID:      "call-42",
		FromNumber:  "+1 555 000 9999",
		CallerName:  "Jordan Van Dyke",
		CallerEmail: "not an email",
		Interest:    "evening classes",
		Summary:     "Asked about financial aid.",
	}

	res, err := f.svc.CreateLeadFromCall(ctx, call)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "Jordan", res.Lead.FirstName)
	assert.Equal(t, "Van Dyke", res.Lead.LastName)
	assert.Equal(t, models.LeadSourcePhoneCall, res.Lead.Source)
	assert.Equal(t, "+15550009999", *res.Lead.Phone)
	assert.Nil(t, res.Lead.Email)
	assert.Equal(t, "call-42", *res.Lead.ExternalRef)
	assert.Contains(t, *res.Lead.Notes, "evening classes")
	assert.Empty(t, f.enroller.requests)

	dup, err := f.svc.CreateLeadFromCall(ctx, dto.CallAnalyticsCall{CallID: "call-43", FromNumber: "+15550009999"})
	require.NoError(t, err)
	assert.False(t, dup.Created)
	assert.Equal(t, res.Lead.ID, dup.Lead.ID)
}

func TestApplicationLifecycleEnrollsStudent(t *testing.T) {
	f := newFunnelFixture(t)
	ctx := context.Background()

	lead, err := f.svc.CreateLead(ctx, staffActor, dto.LeadRequest{FirstName: "Ana", Email: strPtr("ana@example.com"), Source: "web"})
	require.NoError(t, err)

	expectCommit(f.mock)
	app, err := f.svc.CreateApplication(ctx, staffActor, dto.ApplicationRequest{
		LeadID: &lead.Lead.ID, FirstName: "Ana", LastName: "Ruiz", Email: "ana@example.com", ProgramID: "prog-barber", CampusID: "campus-main",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusDraft, app.Status)
	assert.Equal(t, models.LeadStatusApplicant, f.leads.leads[lead.Lead.ID].Status)
	require.Len(t, f.enroller.requests, 2)
	assert.Equal(t, models.SequenceApplicationFollowup, f.enroller.requests[1].SequenceCode)

	expectRollback(f.mock)
	_, err = f.svc.EnrollApplication(ctx, staffActor, app.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	expectCommit(f.mock)
	_, err = f.svc.SubmitApplication(ctx, staffActor, app.ID)
	require.NoError(t, err)

	expectCommit(f.mock)
	decided, err := f.svc.DecideApplication(ctx, staffActor, app.ID, dto.DecisionRequest{Decision: models.ApplicationStatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusAccepted, decided.Status)
	require.NotNil(t, decided.DecidedBy)

	_, err = f.svc.DecideApplication(ctx, staffActor, app.ID, dto.DecisionRequest{Decision: models.ApplicationStatusEnrolled})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	expectCommit(f.mock)
	enrolled, err := f.svc.EnrollApplication(ctx, staffActor, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusEnrolled, enrolled.Application.Status)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrolled.Student.EnrollmentStatus)
	assert.Equal(t, enrolled.Student.ID, *f.apps.apps[app.ID].StudentID)
	assert.Equal(t, enrolled.Student.ID, enrolled.Account.StudentID)
	assert.Len(t, f.students.students, 1)

	expectRollback(f.mock)
	_, err = f.svc.EnrollApplication(ctx, staffActor, app.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateApplicationRejectsLostLead(t *testing.T) {
	f := newFunnelFixture(t)
	ctx := context.Background()
	lead, err := f.svc.CreateLead(ctx, staffActor, dto.LeadRequest{FirstName: "Ana", Email: strPtr("ana@example.com"), Source: "web"})
	require.NoError(t, err)
	_, err = f.svc.UpdateLeadStatus(ctx, staffActor, lead.Lead.ID, dto.LeadStatusRequest{Status: models.LeadStatusLost})
	require.NoError(t, err)

	_, err = f.svc.CreateApplication(ctx, staffActor, dto.ApplicationRequest{
		LeadID: &lead.Lead.ID, FirstName: "Ana", LastName: "Ruiz", Email: "ana@example.com", ProgramID: "prog-barber", CampusID: "campus-main",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}
