// Package contentstore defines the content-addressed store for credential and
// profile payloads. Payloads are JSON documents; an Address is a CID.
package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Store uploads payloads and resolves addresses back to them. Implementations
// never retry internally: only the caller knows whether a ledger write has
// already been committed against an address.
type Store interface {
	// Put fails with ErrStoreRejected for a malformed payload and
	// ErrStoreUnavailable on transport or service failure. It never partially writes.
	Put(ctx context.Context, payload json.RawMessage) (Address, error)
	// Get fails with ErrNotFound for unknown addresses and ErrStoreUnavailable
	// on transport failure.
	Get(ctx context.Context, addr Address) (json.RawMessage, error)
}

// Address is a content identifier in its canonical string form.
type Address string

func (a Address) String() string { return string(a) }

// ParseAddress validates s as a CID.
func ParseAddress(s string) (Address, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address(c.String()), nil
}

// AddressOf derives the CIDv1 (raw codec, sha2-256) for data.
func AddressOf(data []byte) (Address, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return Address(cid.NewCidV1(cid.Raw, sum).String()), nil
}

// Canonicalize checks that payload is a JSON document and strips
// insignificant whitespace, so equal documents hash to equal addresses.
func Canonicalize(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrStoreRejected)
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrStoreRejected)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreRejected, err)
	}
	return buf.Bytes(), nil
}
