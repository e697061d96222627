package service

import (
	"context"
	"errors"
	"fmt"

	"credledger/internal/contentstore"
	"credledger/internal/ledger"
	dErrors "credledger/pkg/domain-errors"
)

// Steps of the issuance workflow, reported in StepError and metrics.
const (
	StepValidate = "validate"
	StepUpload   = "upload"
	StepSubmit   = "submit"
	StepConfirm  = "confirm"
)

// StepError records which step of the workflow failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// FailedStep returns the step recorded in err, or "".
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

func validationError(msg string) error {
	return &dErrors.Error{
		Code:    dErrors.CodeValidation,
		Message: msg,
		Err:     &StepError{Step: StepValidate, Err: errors.New(msg)},
	}
}

// uploadError classifies a content store failure. Nothing reached the ledger.
func uploadError(err error) error {
	step := &StepError{Step: StepUpload, Err: err}
	if errors.Is(err, contentstore.ErrStoreRejected) {
		return &dErrors.Error{Code: dErrors.CodeBadRequest, Message: "content store rejected the payload", Err: step}
	}
	return &dErrors.Error{Code: dErrors.CodeUnavailable, Message: "content store unavailable", Err: step}
}

// ledgerError classifies a submit or confirm failure that is terminal for
// the request.
func ledgerError(step string, err error) error {
	wrapped := &StepError{Step: step, Err: err}

	var revert *ledger.RevertError
	switch {
	case errors.As(err, &revert) && revert.Reason == ledger.RevertHolderRegistered:
		return &dErrors.Error{Code: dErrors.CodeConflict, Message: revert.Reason, Err: wrapped}
	case errors.As(err, &revert):
		return &dErrors.Error{Code: dErrors.CodeRejected, Message: revert.Reason, Err: wrapped}
	case errors.Is(err, ledger.ErrNotFound):
		return &dErrors.Error{Code: dErrors.CodeNotFound, Message: "transaction not found", Err: wrapped}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &dErrors.Error{Code: dErrors.CodeTimeout, Message: "request cancelled", Err: wrapped}
	case step == StepSubmit:
		return &dErrors.Error{Code: dErrors.CodeUnavailable, Message: "ledger submission failed", Err: wrapped}
	default:
		return &dErrors.Error{Code: dErrors.CodeUnavailable, Message: "ledger unavailable", Err: wrapped}
	}
}

// stillPending reports whether a confirm error leaves the transaction in
// flight rather than decided.
func stillPending(err error) bool {
	return errors.Is(err, ledger.ErrTxTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
