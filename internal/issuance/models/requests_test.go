package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "credledger/pkg/domain-errors"
)

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2030-01-01", want: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		{in: "2030-01-01T12:30:00+02:00", want: time.Date(2030, 1, 1, 10, 30, 0, 0, time.UTC)},
		{in: "01/01/2030", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpiry(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}
}

func TestIssueCredentialRequest_Validate(t *testing.T) {
	valid := func() IssueCredentialRequest {
		return IssueCredentialRequest{
			HolderAddress:  "0x00000000000000000000000000000000000000bc",
			CredentialType: "degree",
			CredentialName: "BSc CS",
			ExpiryDate:     "2030-01-01",
		}
	}

	t.Run("valid", func(t *testing.T) {
		req := valid()
		require.NoError(t, req.Validate())
	})

	tests := map[string]func(*IssueCredentialRequest){
		"bad address":     func(r *IssueCredentialRequest) { r.HolderAddress = "0xabc" },
		"blank type":      func(r *IssueCredentialRequest) { r.CredentialType = "  " },
		"missing name":    func(r *IssueCredentialRequest) { r.CredentialName = "" },
		"unparsable date": func(r *IssueCredentialRequest) { r.ExpiryDate = "next year" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := valid()
			mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestRegisterHolderRequest_Normalize(t *testing.T) {
	req := RegisterHolderRequest{
		Address: " 0x00000000000000000000000000000000000000bc ",
		Name:    " Ada ",
		Email:   " Ada@Example.com",
	}
	req.Normalize()

	require.NoError(t, req.Validate())
	assert.Equal(t, "ada@example.com", req.Email)
	assert.Equal(t, "Ada", req.Name)
}
