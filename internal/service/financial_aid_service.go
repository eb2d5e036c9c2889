package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type financialAidRepository interface {
	CreateRecord(ctx context.Context, record *models.FinancialAidRecord) error
	FindRecord(ctx context.Context, id string) (*models.FinancialAidRecord, error)
	ListRecordsByStudent(ctx context.Context, studentID string) ([]models.FinancialAidRecord, error)
	CreateAward(ctx context.Context, award *models.FinancialAidAward) error
	LockAward(ctx context.Context, exec sqlx.ExtContext, id string) (*models.FinancialAidAward, error)
	UpdateAwardStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.AwardStatus) error
	ListAwards(ctx context.Context, recordID string) ([]models.FinancialAidAward, error)
	CreateDisbursement(ctx context.Context, exec sqlx.ExtContext, d *models.Disbursement) error
	LockDisbursement(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Disbursement, error)
	MarkReleased(ctx context.Context, exec sqlx.ExtContext, id, paymentID string, at time.Time) error
	CancelScheduled(ctx context.Context, exec sqlx.ExtContext, awardID string) (int64, error)
	ListDisbursements(ctx context.Context, exec sqlx.ExtContext, awardID string) ([]models.Disbursement, error)
	FindStudentForAward(ctx context.Context, exec sqlx.ExtContext, awardID string) (string, error)
}

type paymentPoster interface {
	ApplyPayment(ctx context.Context, tx sqlx.ExtContext, studentID string, payment *models.Payment) (float64, error)
}

var awardTransitions = map[models.AwardStatus][]models.AwardStatus{
	models.AwardStatusPending:  {models.AwardStatusPackaged, models.AwardStatusCancelled},
	models.AwardStatusPackaged: {models.AwardStatusAccepted, models.AwardStatusCancelled},
	models.AwardStatusAccepted: {models.AwardStatusDisbursed, models.AwardStatusCancelled},
}

func canTransitionAward(from, to models.AwardStatus) bool {
	for _, allowed := range awardTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// FinancialAidService manages aid records, award packaging and disbursements.
// Released disbursements post to the student ledger in the same transaction.
type FinancialAidService struct {
	repo      financialAidRepository
	students  studentReader
	ledger    paymentPoster
	tx        txProvider
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFinancialAidService constructs a FinancialAidService.
func NewFinancialAidService(repo financialAidRepository, students studentReader, ledger paymentPoster, tx txProvider, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *FinancialAidService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &FinancialAidService{repo: repo, students: students, ledger: ledger, tx: tx, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// CreateRecord opens an aid record for one award year.
func (s *FinancialAidService) CreateRecord(ctx context.Context, actor models.Actor, studentID string, req dto.AidRecordRequest) (*models.FinancialAidRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid aid record payload")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}
	record := &models.FinancialAidRecord{StudentID: studentID, AwardYear: req.AwardYear, Status: "open"}
	if err := s.repo.CreateRecord(ctx, record); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "aid record already exists for award year")
		}
		return nil, appErrors.Internal(err, "failed to create aid record")
	}
	s.audit.Record(actor, models.AuditActionAidRecord, "financial_aid_record", record.ID, record)
	return record, nil
}

// ListForStudent returns the student's aid records.
func (s *FinancialAidService) ListForStudent(ctx context.Context, studentID string) ([]models.FinancialAidRecord, error) {
	records, err := s.repo.ListRecordsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list aid records")
	}
	return records, nil
}

// GetPackage returns a record with its awards and their disbursements.
func (s *FinancialAidService) GetPackage(ctx context.Context, recordID string) (*models.FinancialAidPackage, error) {
	record, err := s.repo.FindRecord(ctx, recordID)
	if err != nil {
		return nil, notFound(err, "aid record not found", "failed to load aid record")
	}
	awards, err := s.repo.ListAwards(ctx, recordID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list awards")
	}
	pkg := &models.FinancialAidPackage{Record: *record, Awards: awards, Disbursements: []models.Disbursement{}}
	for _, award := range awards {
		ds, err := s.repo.ListDisbursements(ctx, nil, award.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list disbursements")
		}
		pkg.Disbursements = append(pkg.Disbursements, ds...)
	}
	return pkg, nil
}

// AddAward adds a pending award to a record.
func (s *FinancialAidService) AddAward(ctx context.Context, actor models.Actor, recordID string, req dto.AwardRequest) (*models.FinancialAidAward, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid award payload")
	}
	if !req.AwardType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid award type")
	}
	if _, err := s.repo.FindRecord(ctx, recordID); err != nil {
		return nil, notFound(err, "aid record not found", "failed to load aid record")
	}
	award := &models.FinancialAidAward{AidRecordID: recordID, AwardType: req.AwardType, Amount: round2(req.Amount), Status: models.AwardStatusPending}
	if err := s.repo.CreateAward(ctx, award); err != nil {
		return nil, appErrors.Internal(err, "failed to create award")
	}
	s.audit.Record(actor, models.AuditActionAidAward, "financial_aid_award", award.ID, award)
	return award, nil
}

// PackageAward moves a pending award to packaged.
func (s *FinancialAidService) PackageAward(ctx context.Context, actor models.Actor, awardID string) (*models.FinancialAidAward, error) {
	return s.transitionAward(ctx, actor, awardID, models.AwardStatusPackaged)
}

// AcceptAward records the student's acceptance of a packaged award.
func (s *FinancialAidService) AcceptAward(ctx context.Context, actor models.Actor, awardID string) (*models.FinancialAidAward, error) {
	return s.transitionAward(ctx, actor, awardID, models.AwardStatusAccepted)
}

// CancelAward cancels an award and any disbursements not yet released.
func (s *FinancialAidService) CancelAward(ctx context.Context, actor models.Actor, awardID string) (*models.FinancialAidAward, error) {
	return s.transitionAward(ctx, actor, awardID, models.AwardStatusCancelled)
}

func (s *FinancialAidService) transitionAward(ctx context.Context, actor models.Actor, awardID string, next models.AwardStatus) (*models.FinancialAidAward, error) {
	var updated *models.FinancialAidAward
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		award, err := s.repo.LockAward(ctx, tx, awardID)
		if err != nil {
			return notFound(err, "award not found", "failed to load award")
		}
		if !canTransitionAward(award.Status, next) {
			return appErrors.Clone(appErrors.ErrInvalidState, "award cannot move from "+string(award.Status)+" to "+string(next))
		}
		if err := s.repo.UpdateAwardStatus(ctx, tx, award.ID, next); err != nil {
			return appErrors.Internal(err, "failed to update award status")
		}
		if next == models.AwardStatusCancelled {
			if _, err := s.repo.CancelScheduled(ctx, tx, award.ID); err != nil {
				return appErrors.Internal(err, "failed to cancel disbursements")
			}
		}
		award.Status = next
		updated = award
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(actor, models.AuditActionAidAward, "financial_aid_award", awardID, map[string]interface{}{"status": next})
	return updated, nil
}

// ScheduleDisbursement plans a release against an accepted award. Scheduled
// and released disbursements never exceed the award amount.
func (s *FinancialAidService) ScheduleDisbursement(ctx context.Context, actor models.Actor, awardID string, req dto.DisbursementRequest) (*models.Disbursement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid disbursement payload")
	}

	disbursement := &models.Disbursement{
		AwardID:       awardID,
		Amount:        round2(req.Amount),
		ScheduledDate: dateOnly(req.ScheduledDate),
		Status:        models.DisbursementStatusScheduled,
	}
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		award, err := s.repo.LockAward(ctx, tx, awardID)
		if err != nil {
			return notFound(err, "award not found", "failed to load award")
		}
		if award.Status != models.AwardStatusAccepted {
			return appErrors.Clone(appErrors.ErrInvalidState, "only accepted awards can be disbursed")
		}
		existing, err := s.repo.ListDisbursements(ctx, tx, awardID)
		if err != nil {
			return appErrors.Internal(err, "failed to list disbursements")
		}
		committed := disbursement.Amount
		for _, d := range existing {
			if d.Status != models.DisbursementStatusCancelled {
				committed += d.Amount
			}
		}
		if round2(committed) > award.Amount {
			return appErrors.Clone(appErrors.ErrValidation, "disbursements exceed award amount")
		}
		if err := s.repo.CreateDisbursement(ctx, tx, disbursement); err != nil {
			return appErrors.Internal(err, "failed to schedule disbursement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(actor, models.AuditActionAidDisburse, "financial_aid_disbursement", disbursement.ID, disbursement)
	return disbursement, nil
}

// ReleaseDisbursement posts a scheduled disbursement to the student's ledger
// as a completed financial aid payment. The award becomes disbursed once no
// scheduled disbursements remain.
func (s *FinancialAidService) ReleaseDisbursement(ctx context.Context, actor models.Actor, disbursementID string) (*dto.ReleaseResult, error) {
	result := &dto.ReleaseResult{}
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		disbursement, err := s.repo.LockDisbursement(ctx, tx, disbursementID)
		if err != nil {
			return notFound(err, "disbursement not found", "failed to load disbursement")
		}
		if disbursement.Status != models.DisbursementStatusScheduled {
			return appErrors.Clone(appErrors.ErrInvalidState, "disbursement is not scheduled")
		}
		award, err := s.repo.LockAward(ctx, tx, disbursement.AwardID)
		if err != nil {
			return notFound(err, "award not found", "failed to load award")
		}
		if award.Status != models.AwardStatusAccepted {
			return appErrors.Clone(appErrors.ErrInvalidState, "award is not accepted")
		}
		studentID, err := s.repo.FindStudentForAward(ctx, tx, award.ID)
		if err != nil {
			return notFound(err, "aid record not found", "failed to resolve award student")
		}

		reference := "disbursement " + disbursement.ID
		payment := &models.Payment{
			Amount:         disbursement.Amount,
			Method:         models.PaymentMethodFinancialAid,
			Status:         models.PaymentStatusCompleted,
			Reference:      &reference,
			DisbursementID: &disbursement.ID,
			CreatedBy:      actor.UserIDPtr(),
		}
		balance, err := s.ledger.ApplyPayment(ctx, tx, studentID, payment)
		if err != nil {
			return err
		}

		at := s.now().UTC()
		if err := s.repo.MarkReleased(ctx, tx, disbursement.ID, payment.ID, at); err != nil {
			return appErrors.Internal(err, "failed to release disbursement")
		}
		disbursement.Status = models.DisbursementStatusReleased
		disbursement.ReleasedAt = &at
		disbursement.PaymentID = &payment.ID

		remaining, err := s.repo.ListDisbursements(ctx, tx, award.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to list disbursements")
		}
		awardStatus := award.Status
		if !hasScheduled(remaining, disbursement.ID) {
			if err := s.repo.UpdateAwardStatus(ctx, tx, award.ID, models.AwardStatusDisbursed); err != nil {
				return appErrors.Internal(err, "failed to mark award disbursed")
			}
			awardStatus = models.AwardStatusDisbursed
		}

		result.Disbursement = *disbursement
		result.Payment = *payment
		result.Balance = balance
		result.AwardStatus = awardStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionAidDisburse, "financial_aid_disbursement", disbursementID, result)
	s.logger.Info("disbursement released",
		zap.String("disbursement_id", disbursementID),
		zap.Float64("amount", result.Payment.Amount),
		zap.String("award_status", string(result.AwardStatus)),
	)
	return result, nil
}

// hasScheduled reports whether any disbursement other than released is still scheduled.
func hasScheduled(ds []models.Disbursement, released string) bool {
	for _, d := range ds {
		if d.ID != released && d.Status == models.DisbursementStatusScheduled {
			return true
		}
	}
	return false
}
