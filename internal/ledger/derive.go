package ledger

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/sha3"
)

// DeriveCredentialID hashes the issuance inputs with Keccak-256. Every field
// is length-prefixed so adjacent strings cannot collide. No timestamp takes
// part: identical inputs from the same issuer always derive the same id.
func DeriveCredentialID(issuer Address, req IssueRequest) CredentialID {
	h := sha3.NewLegacyKeccak256()
	writeField(h, issuer[:])
	writeField(h, req.Holder[:])
	writeField(h, []byte(req.Type))
	writeField(h, []byte(req.Name))
	writeField(h, []byte(req.Description))
	var expiry [8]byte
	binary.BigEndian.PutUint64(expiry[:], uint64(req.Expiry.Unix()))
	writeField(h, expiry[:])
	writeField(h, []byte(req.ContentAddress))

	var id CredentialID
	h.Sum(id[:0])
	return id
}

func writeField(w io.Writer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	_, _ = w.Write(n[:])
	_, _ = w.Write(b)
}
