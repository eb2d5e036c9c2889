package models

import "time"

// Audit actions recorded for mutations.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionUserCreate        = "USER_CREATE"
	AuditActionUserUpdate        = "USER_UPDATE"
	AuditActionUserDeactivate    = "USER_DEACTIVATE"
	AuditActionClockIn           = "ATTENDANCE_CLOCK_IN"
	AuditActionClockOut          = "ATTENDANCE_CLOCK_OUT"
	AuditActionCorrectionRequest = "ATTENDANCE_CORRECTION_REQUEST"
	AuditActionCorrectionApprove = "ATTENDANCE_CORRECTION_APPROVE"
	AuditActionCorrectionReject  = "ATTENDANCE_CORRECTION_REJECT"
	AuditActionStudentCreate     = "STUDENT_CREATE"
	AuditActionStudentUpdate     = "STUDENT_UPDATE"
	AuditActionStudentStatus     = "STUDENT_STATUS_CHANGE"
	AuditActionSAPEvaluate       = "SAP_EVALUATE"
	AuditActionChargePost        = "CHARGE_POST"
	AuditActionChargeVoid        = "CHARGE_VOID"
	AuditActionPaymentRecord     = "PAYMENT_RECORD"
	AuditActionPaymentStatus     = "PAYMENT_STATUS_CHANGE"
	AuditActionAidRecord         = "AID_RECORD_CREATE"
	AuditActionAidAward          = "AID_AWARD_CHANGE"
	AuditActionAidDisburse       = "AID_DISBURSE"
	AuditActionLeadCreate        = "LEAD_CREATE"
	AuditActionLeadStatus        = "LEAD_STATUS_CHANGE"
	AuditActionApplicationChange = "APPLICATION_CHANGE"
	AuditActionSequenceEnroll    = "SEQUENCE_ENROLL"
	AuditActionSequenceState     = "SEQUENCE_STATE_CHANGE"
	AuditActionImport            = "IMPORT"
	AuditActionDocumentGenerate  = "DOCUMENT_GENERATE"
	AuditActionReportExport      = "REPORT_EXPORT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
