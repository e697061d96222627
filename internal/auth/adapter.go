package auth

import (
	authmw "credledger/pkg/platform/middleware/auth"
)

// BearerVerifier adapts an Authenticator to the auth middleware.
type BearerVerifier struct {
	auth *Authenticator
}

func NewBearerVerifier(a *Authenticator) *BearerVerifier {
	return &BearerVerifier{auth: a}
}

func (v *BearerVerifier) VerifyBearer(token string) (*authmw.Claims, error) {
	claims, err := v.auth.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{Subject: claims.Subject, TokenID: claims.ID}, nil
}
