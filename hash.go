package xsession

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"hash"
)

// DigestSize is the length in bytes of an integrity digest.
const DigestSize = sha256.Size

const (
	digestDomain     = "xsession/record/v1"
	digestDomainNoID = "xsession/record/v1-noid"
)

// hasher computes the integrity digest of an envelope: SHA-256 over a
// canonical encoding of expiration increment, expiry, current time,
// initialized flag, start time and the serialized payload, in that order.
// The digest slot never feeds itself. The identifier is prefixed unless
// excludeID is set, in which case a record can carry any identifier and
// still verify.
type hasher struct {
	excludeID bool
}

func (h hasher) sum(e *envelope) []byte {
	d := sha256.New()
	if h.excludeID {
		d.Write([]byte(digestDomainNoID))
	} else {
		d.Write([]byte(digestDomain))
		d.Write(e.id[:])
	}

	writeInt64(d, e.increment)
	writeInt64(d, e.expires)
	writeInt64(d, e.current)
	d.Write([]byte{boolByte(e.initialized)})
	writeInt64(d, e.start)

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(e.payload)))
	d.Write(n[:])
	d.Write(e.payload)

	return d.Sum(nil)
}

// verify reports whether e.digest matches the digest recomputed from e.
func (h hasher) verify(e *envelope) bool {
	want := h.sum(e)
	return len(e.digest) == len(want) && subtle.ConstantTimeCompare(e.digest, want) == 1
}

func writeInt64(w hash.Hash, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.Write(b[:])
}
