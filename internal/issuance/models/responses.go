package models

import (
	"time"

	"credledger/internal/contentstore"
	"credledger/internal/ledger"
)

// Status is the state of a receipt.
type Status string

const (
	StatusConfirmed     Status = "confirmed"
	StatusPending       Status = "pending"
	StatusAlreadyIssued Status = "already_issued"
)

// BlockReference locates a confirmed transaction on the ledger.
type BlockReference struct {
	Number uint64    `json:"number"`
	Time   time.Time `json:"time"`
}

// Receipt is the combined outcome of an issuance or registration. A pending
// receipt keeps TxHash so it can be resumed; Block is set only once final.
type Receipt struct {
	Kind           ledger.TxKind        `json:"kind,omitempty"`
	Status         Status               `json:"status"`
	CredentialID   ledger.CredentialID  `json:"credentialId,omitzero"`
	Holder         ledger.Address       `json:"holder,omitzero"`
	ContentAddress contentstore.Address `json:"contentAddress,omitempty"`
	TxHash         string               `json:"transactionHash,omitempty"`
	Block          *BlockReference      `json:"block,omitempty"`
}
