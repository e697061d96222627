// Package ledger is the typed boundary to the credential ledger: an external,
// append-mostly record of holders and credentials with an asynchronous
// submit/confirm commit model.
package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CredentialID is the 32 byte identifier the ledger derives from issuance inputs.
type CredentialID [32]byte

// ParseCredentialID parses a 0x-prefixed 64 character hex string.
func ParseCredentialID(s string) (CredentialID, error) {
	var id CredentialID
	if err := decodeFixedHex(s, id[:]); err != nil {
		return CredentialID{}, fmt.Errorf("invalid credential id: %w", err)
	}
	return id, nil
}

func (id CredentialID) String() string { return "0x" + hex.EncodeToString(id[:]) }

func (id CredentialID) IsZero() bool { return id == CredentialID{} }

func (id CredentialID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CredentialID) UnmarshalText(b []byte) error {
	parsed, err := ParseCredentialID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Address is a 20 byte ledger account address.
type Address [20]byte

// ParseAddress parses a 0x-prefixed 40 character hex string, case-insensitively.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeFixedHex(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	return a, nil
}

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func decodeFixedHex(s string, dst []byte) error {
	raw, ok := strings.CutPrefix(strings.TrimSpace(s), "0x")
	if !ok {
		raw, ok = strings.CutPrefix(strings.TrimSpace(s), "0X")
	}
	if !ok {
		return errors.New("missing 0x prefix")
	}
	if len(raw) != 2*len(dst) {
		return fmt.Errorf("expected %d hex characters, got %d", 2*len(dst), len(raw))
	}
	if _, err := hex.Decode(dst, []byte(raw)); err != nil {
		return err
	}
	return nil
}

// TxKind names the contract call a transaction carries.
type TxKind string

const (
	TxRegisterHolder  TxKind = "register_holder"
	TxIssueCredential TxKind = "issue_credential"
	TxAuthorizeIssuer TxKind = "authorize_issuer"
)

// TxHandle references a submitted, not yet final, write. TxHash alone is
// enough to confirm it; the other fields are what the submitter knew.
// Holder is the subject account: the holder for register and issue, the
// issuer for authorize.
type TxHandle struct {
	TxHash         string
	Kind           TxKind
	CredentialID   CredentialID
	Holder         Address
	ContentAddress string
	SubmittedAt    time.Time
}

// Confirmation is the final, successful outcome of a transaction.
type Confirmation struct {
	TxHash         string
	Kind           TxKind
	CredentialID   CredentialID
	Holder         Address
	ContentAddress string
	BlockNumber    uint64
	BlockTime      time.Time
}

// Holder is a registered identity record.
type Holder struct {
	Address         Address
	Name            string
	Email           string
	ContentAddress  string
	MemberSince     time.Time
	CredentialCount uint64
}

// CredentialRecord is the ledger's view of a credential. Everything but
// Revoked is immutable once confirmed; Revoked only moves false to true.
type CredentialRecord struct {
	ID             CredentialID
	Issuer         Address
	Holder         Address
	Type           string
	Name           string
	Description    string
	IssuanceTime   time.Time
	ExpiryTime     time.Time
	ContentAddress string
	Revoked        bool
}

// RegisterHolderRequest are the inputs of registerHolder.
type RegisterHolderRequest struct {
	Holder         Address
	Name           string
	Email          string
	ContentAddress string
}

// IssueRequest are the inputs of issueCredential. The issuer is the client's account.
type IssueRequest struct {
	Holder         Address
	Type           string
	Name           string
	Description    string
	Expiry         time.Time
	ContentAddress string
}

// Verification reasons reported by verifyCredential.
const (
	ReasonValid    = "valid"
	ReasonNotFound = "not found"
	ReasonRevoked  = "revoked"
	ReasonExpired  = "expired"
)

// Revert reasons shared by ledger implementations.
const (
	RevertIssuerNotAuthorized = "issuer not authorized"
	RevertHolderRegistered    = "holder already registered"
	RevertExpiryInPast        = "expiry must be in the future"
	RevertAlreadyIssued       = "credential already issued"
	RevertNotOwner            = "caller is not the owner"
)
