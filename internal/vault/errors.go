// Package vault implements the secure report vault: patient matching,
// per-report envelope encryption, the OTP challenge, the audit trail and the
// upload/view pipelines that tie them together. Handlers translate the
// sentinel errors below into HTTP responses with errors.Is.
package vault

import "errors"

var (
	// Matcher errors. Both already carry an UPLOAD_ATTEMPT audit entry by
	// the time they reach the caller.
	ErrPatientNotFound = errors.New("no patient registered with that phone number")
	ErrAadhaarMismatch = errors.New("aadhaar verification failed")

	// Pipeline errors.
	ErrStaffNotVerified = errors.New("staff account is not verified")
	ErrReportNotFound   = errors.New("report not found")
	ErrOTPRequired      = errors.New("otp verification required")

	// ErrVaultUnavailable covers decryption and storage integrity faults.
	// The internal cause is logged, never exposed, so a caller cannot tell
	// tampering from a missing blob.
	ErrVaultUnavailable = errors.New("report temporarily unavailable")

	// ErrDecryptionFailure is the engine-level signal behind ErrVaultUnavailable.
	ErrDecryptionFailure = errors.New("decryption failure")

	// ErrAuditWrite means an access decision could not be made durable. The
	// request carrying it must fail: no grant or deny is returned without
	// its log entry.
	ErrAuditWrite = errors.New("audit log write failed")
)
