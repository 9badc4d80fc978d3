package xsession

import "errors"

var (
	// ErrNotSerializable is raised (as a panic) by New when the payload
	// type cannot be round-tripped by the configured PayloadCodec.
	ErrNotSerializable = errors.New("payload type is not serializable")
	// ErrUnsupportedVersion is returned when a stored record carries an
	// unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported session record version")
	// ErrMalformedRecord is returned when stored bytes cannot be decoded
	// into a session record.
	ErrMalformedRecord = errors.New("malformed session record")
	// ErrDigestMismatch marks a record whose stored digest does not match
	// the digest recomputed from its fields.
	ErrDigestMismatch = errors.New("session digest mismatch")
	// ErrClosed is reported when a closed container is used.
	ErrClosed = errors.New("session container closed")
)
