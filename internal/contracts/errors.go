package contracts

import (
	"context"
	"errors"
	"fmt"
)

// ⭐ SSOT: 에러 분류는 여기서만 정의
var (
	// ErrDataUnavailable means the snapshot could not be fetched (job-level, retryable)
	ErrDataUnavailable = errors.New("snapshot data unavailable")

	// ErrInvalidContract marks a contract filtered out of a run (never job-level)
	ErrInvalidContract = errors.New("invalid contract")

	// ErrComputation means a run produced a non-finite or impossible result (job-level, retryable)
	ErrComputation = errors.New("ranking computation failed")

	ErrJobNotFound      = errors.New("ranking job not found")
	ErrNoPendingJob     = errors.New("no pending ranking job")
	ErrJobLost          = errors.New("ranking job no longer owned by this worker")
	ErrJobTimeout       = errors.New("ranking job exceeded running timeout")
	ErrRankingNotFound  = errors.New("no completed ranking for symbol")
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrSnapshotNotFound = errors.New("no snapshot for symbol")
)

// InvalidReason is a short machine-readable exclusion reason
type InvalidReason string

const (
	ReasonNonPositiveMark InvalidReason = "non_positive_mark"
	ReasonCrossedQuote    InvalidReason = "crossed_quote"
	ReasonMissingGreek    InvalidReason = "missing_greek"
	ReasonMissingField    InvalidReason = "missing_field"
	ReasonDuplicate       InvalidReason = "duplicate_contract"
)

// InvalidContractError describes why one contract was excluded
type InvalidContractError struct {
	ContractID string
	Reason     InvalidReason
	Detail     string
}

func (e *InvalidContractError) Error() string {
	return fmt.Sprintf("invalid contract %s: %s (%s)", e.ContractID, e.Reason, e.Detail)
}

// Is makes errors.Is(err, ErrInvalidContract) hold
func (e *InvalidContractError) Is(target error) bool {
	return target == ErrInvalidContract
}

// ErrorKind is recorded next to a failed job's error text
type ErrorKind string

const (
	ErrorKindDataUnavailable ErrorKind = "data_unavailable"
	ErrorKindComputation     ErrorKind = "computation"
	ErrorKindTimeout         ErrorKind = "timeout"
	ErrorKindUnknown         ErrorKind = "unknown"
)

// ClassifyError maps a job error onto an ErrorKind
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDataUnavailable), errors.Is(err, ErrSnapshotNotFound):
		return ErrorKindDataUnavailable
	case errors.Is(err, ErrComputation):
		return ErrorKindComputation
	case errors.Is(err, ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	default:
		return ErrorKindUnknown
	}
}
