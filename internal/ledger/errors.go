package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("ledger: not found")
	// ErrSubmitFailed means the write never reached the ledger.
	ErrSubmitFailed = errors.New("ledger: submit failed")
	// ErrTxTimeout means finality was not observed in time; the transaction may still land.
	ErrTxTimeout = errors.New("ledger: confirmation timed out")
	// ErrUnavailable means a read could not reach the ledger.
	ErrUnavailable = errors.New("ledger: unavailable")
)

// RevertError is a business rejection reported by the ledger.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("ledger: transaction reverted: %s", e.Reason)
}

// AlreadyIssuedError reports that the derived credential id already exists.
type AlreadyIssuedError struct {
	ID CredentialID
}

func (e *AlreadyIssuedError) Error() string {
	return fmt.Sprintf("ledger: credential %s already issued", e.ID)
}
