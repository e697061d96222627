package contentstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	got, err := Canonicalize([]byte("  {\n \"school\": \"X\" }\n"))
	require.NoError(t, err)
	assert.Equal(t, `{"school":"X"}`, string(got))

	for _, bad := range []string{"", "   ", "{not json", "{\"a\":1} trailing"} {
		_, err := Canonicalize([]byte(bad))
		assert.ErrorIs(t, err, ErrStoreRejected, bad)
	}
}

func TestAddressOf(t *testing.T) {
	a1, err := AddressOf([]byte(`{"school":"X"}`))
	require.NoError(t, err)
	a2, err := AddressOf([]byte(`{"school":"X"}`))
	require.NoError(t, err)
	a3, err := AddressOf([]byte(`{"school":"Y"}`))
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, a3)

	parsed, err := ParseAddress(a1.String())
	require.NoError(t, err)
	assert.Equal(t, a1, parsed)
}

func TestParseAddress(t *testing.T) {
	_, err := ParseAddress("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
	assert.NoError(t, err, "CIDv0 from a pinning service is accepted")

	_, err = ParseAddress("not-a-cid")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestBackendError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &BackendError{Kind: ErrStoreUnavailable, Backend: "pinning", Op: "put", Underlying: cause}

	assert.True(t, IsUnavailable(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "pinning put: contentstore: unavailable: dial tcp: connection refused", err.Error())

	withStatus := &BackendError{Kind: ErrNotFound, Backend: "pinning", Op: "get", StatusCode: 404}
	assert.Equal(t, "pinning get: contentstore: not found (status 404)", withStatus.Error())
}
