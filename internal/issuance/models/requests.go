package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/validation"
)

const dateLayout = "2006-01-02"

// IssueCredentialRequest is the body of POST /api/credentials/issue.
type IssueCredentialRequest struct {
	HolderAddress  string          `json:"holderAddress" validate:"required,ledgeraddr"`
	CredentialType string          `json:"credentialType" validate:"required,notblank,max=64"`
	CredentialName string          `json:"credentialName" validate:"required,notblank,max=200"`
	Description    string          `json:"description" validate:"max=2000"`
	ExpiryDate     string          `json:"expiryDate" validate:"required"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

func (r *IssueCredentialRequest) Normalize() {
	r.HolderAddress = strings.TrimSpace(r.HolderAddress)
	r.CredentialType = strings.TrimSpace(r.CredentialType)
	r.CredentialName = strings.TrimSpace(r.CredentialName)
	r.Description = strings.TrimSpace(r.Description)
	r.ExpiryDate = strings.TrimSpace(r.ExpiryDate)
}

func (r *IssueCredentialRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if _, err := ParseExpiry(r.ExpiryDate); err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return nil
}

// ParseExpiry accepts an RFC 3339 timestamp or a calendar date, which is
// read as midnight UTC.
func ParseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("expiryDate must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
}

// RegisterHolderRequest is the body of POST /api/holders/register.
type RegisterHolderRequest struct {
	Address string `json:"address" validate:"required,ledgeraddr"`
	Name    string `json:"name" validate:"required,notblank,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
}

func (r *RegisterHolderRequest) Normalize() {
	r.Address = strings.TrimSpace(r.Address)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *RegisterHolderRequest) Validate() error {
	return validation.Validate(r)
}

// IssueCommand is the coordinator input for one issuance. Principal is the
// authenticated subject acting on the request.
type IssueCommand struct {
	Holder      string
	Type        string
	Name        string
	Description string
	Expiry      time.Time
	Metadata    json.RawMessage
	Principal   string
}

// RegisterHolderCommand is the coordinator input for holder registration.
type RegisterHolderCommand struct {
	Holder    string
	Name      string
	Email     string
	Principal string
}
