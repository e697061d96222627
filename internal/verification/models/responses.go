package models

import (
	"encoding/json"
	"time"

	"credledger/internal/ledger"
)

// Result is the combined verification outcome of one credential. Valid and
// Reason are the ledger's answer; Content is enrichment and may be absent.
type Result struct {
	CredentialID       ledger.CredentialID `json:"credentialId"`
	Valid              bool                `json:"isValid"`
	Reason             string              `json:"reason"`
	Credential         *Credential         `json:"credential,omitempty"`
	Content            json.RawMessage     `json:"content,omitempty"`
	ContentUnavailable bool                `json:"contentUnavailable"`
}

// Credential is the ledger record of a credential.
type Credential struct {
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Issuer         ledger.Address `json:"issuer"`
	Holder         ledger.Address `json:"holder"`
	IssuanceDate   time.Time      `json:"issuanceDate"`
	ExpiryDate     time.Time      `json:"expiryDate"`
	ContentAddress string         `json:"contentAddress"`
	Revoked        bool           `json:"revoked"`
}

func CredentialFromRecord(rec ledger.CredentialRecord) *Credential {
	return &Credential{
		Type:           rec.Type,
		Name:           rec.Name,
		Description:    rec.Description,
		Issuer:         rec.Issuer,
		Holder:         rec.Holder,
		IssuanceDate:   rec.IssuanceTime,
		ExpiryDate:     rec.ExpiryTime,
		ContentAddress: rec.ContentAddress,
		Revoked:        rec.Revoked,
	}
}

// Holder is a registered holder's public profile.
type Holder struct {
	Address         ledger.Address `json:"address"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	ContentAddress  string         `json:"contentAddress"`
	MemberSince     time.Time      `json:"memberSince"`
	CredentialCount uint64         `json:"credentialCount"`
}

// HolderProfile is a holder record together with its credential ids.
type HolderProfile struct {
	Holder      Holder                `json:"holder"`
	Credentials []ledger.CredentialID `json:"credentials"`
}

// HolderCredentials lists a holder's credentials, each verified on its own.
type HolderCredentials struct {
	Address     ledger.Address `json:"address"`
	Credentials []Result       `json:"credentials"`
}
