package ledger

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAddress(t *testing.T, s string) Address {
	t.Helper()
	a, err := ParseAddress(s)
	require.NoError(t, err)
	return a
}

func TestParseAddress(t *testing.T) {
	a := mustAddress(t, "0x00000000000000000000000000000000000000AB")
	assert.Equal(t, "0x00000000000000000000000000000000000000ab", a.String())

	for _, bad := range []string{"", "abc", "0xabc", "00000000000000000000000000000000000000ab", "0x" + strings.Repeat("z", 40)} {
		_, err := ParseAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestCredentialID_JSON(t *testing.T) {
	id := CredentialID{0: 0xde, 31: 0xef}

	b, err := json.Marshal(map[string]CredentialID{"id": id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"0xde000000000000000000000000000000000000000000000000000000000000ef"}`, string(b))

	var out map[string]CredentialID
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, id, out["id"])

	_, err = ParseCredentialID("0x1234")
	assert.Error(t, err)
}

func TestDeriveCredentialID(t *testing.T) {
	issuer := mustAddress(t, "0x00000000000000000000000000000000000000a1")
	req := IssueRequest{
		Holder:         mustAddress(t, "0x0000000000000000000000000000000000000abc"),
		Type:           "degree",
		Name:           "BSc CS",
		Expiry:         time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		ContentAddress: "bafkreiexample",
	}

	base := DeriveCredentialID(issuer, req)
	assert.False(t, base.IsZero())
	assert.Equal(t, base, DeriveCredentialID(issuer, req), "deterministic")

	shifted := req
	shifted.Type, shifted.Name = "degreeB", "Sc CS"
	assert.NotEqual(t, base, DeriveCredentialID(issuer, shifted), "length prefix separates fields")

	otherContent := req
	otherContent.ContentAddress = "bafkreiother"
	assert.NotEqual(t, base, DeriveCredentialID(issuer, otherContent))

	otherIssuer := mustAddress(t, "0x00000000000000000000000000000000000000a2")
	assert.NotEqual(t, base, DeriveCredentialID(otherIssuer, req))

	subSecond := req
	subSecond.Expiry = req.Expiry.Add(300 * time.Millisecond)
	assert.Equal(t, base, DeriveCredentialID(issuer, subSecond), "ledger time has second resolution")
}

func TestErrors(t *testing.T) {
	var revert *RevertError
	err := error(&RevertError{Reason: RevertIssuerNotAuthorized})
	require.True(t, errors.As(err, &revert))
	assert.Equal(t, "ledger: transaction reverted: issuer not authorized", err.Error())

	id := CredentialID{31: 1}
	assert.Contains(t, (&AlreadyIssuedError{ID: id}).Error(), id.String())
}
