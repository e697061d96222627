package ledger

import "context"

// Client is the typed call contract of the deployed ledger. Writes return a
// TxHandle that must be passed to Confirm; they are never retried internally.
type Client interface {
	// Account is the address writes are submitted from (the issuer).
	Account() Address

	RegisterHolder(ctx context.Context, req RegisterHolderRequest) (TxHandle, error)
	IssueCredential(ctx context.Context, req IssueRequest) (TxHandle, error)
	AuthorizeIssuer(ctx context.Context, issuer Address) (TxHandle, error)

	// Confirm blocks until the transaction is final or the client's
	// confirmation timeout elapses (ErrTxTimeout). Reverts surface as
	// *RevertError or *AlreadyIssuedError. A hash the ledger has never seen
	// returns ErrNotFound without waiting. Cancelling ctx returns ctx.Err().
	Confirm(ctx context.Context, h TxHandle) (Confirmation, error)

	GetCredential(ctx context.Context, id CredentialID) (CredentialRecord, error)
	GetHolderCredentials(ctx context.Context, holder Address) ([]CredentialID, error)
	GetHolder(ctx context.Context, holder Address) (Holder, error)
	VerifyCredential(ctx context.Context, id CredentialID) (valid bool, reason string, err error)
}
