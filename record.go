package xsession

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// Record is the persisted unit of session state.
type Record[T any] struct {
	// ID is assigned once by Initialize and never regenerated.
	ID ID

	Initialized bool

	StartTime   time.Time
	CurrentTime time.Time
	// ExpiresAt is CurrentTime + ExpirationIncrement as of the last increment.
	ExpiresAt time.Time

	ExpirationIncrement time.Duration

	// Digest covers every other field and, unless WithoutIDInDigest was
	// given, the ID. Nil until first computed.
	Digest []byte

	Payload T
}

// expired reports whether now is past ExpiresAt. A zero ExpiresAt never
// expires.
func (r *Record[T]) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// State is the health of a container after its last lifecycle operation.
type State uint8

const (
	StateUninitialized State = iota
	StateValid
	StateExpired
	StateCorrupt
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateCorrupt:
		return "corrupt"
	default:
		return "uninitialized"
	}
}

const (
	recordFormatVersion = 1

	// zeroTime encodes time.Time{}, which has no UnixNano representation.
	zeroTime int64 = math.MinInt64

	maxDigestLen  = 255
	maxPayloadLen = math.MaxUint32
)

// envelope is the record with its payload already serialized. It is the
// unit both written to the store and hashed.
type envelope struct {
	id          ID
	initialized bool
	start       int64
	current     int64
	expires     int64
	increment   int64
	digest      []byte
	payload     []byte
}

func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return zeroTime
	}
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	if n == zeroTime {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// sealRecord serializes the payload of r and copies its metadata.
func sealRecord[T any](r *Record[T], codec PayloadCodec[T]) (*envelope, error) {
	payload, err := codec.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode session payload: %w", err)
	}
	return &envelope{
		id:          r.ID,
		initialized: r.Initialized,
		start:       encodeTime(r.StartTime),
		current:     encodeTime(r.CurrentTime),
		expires:     encodeTime(r.ExpiresAt),
		increment:   int64(r.ExpirationIncrement),
		digest:      r.Digest,
		payload:     payload,
	}, nil
}

// openRecord rebuilds a Record from e, decoding the payload with codec.
func openRecord[T any](e *envelope, codec PayloadCodec[T]) (*Record[T], error) {
	r := &Record[T]{
		ID:                  e.id,
		Initialized:         e.initialized,
		StartTime:           decodeTime(e.start),
		CurrentTime:         decodeTime(e.current),
		ExpiresAt:           decodeTime(e.expires),
		ExpirationIncrement: time.Duration(e.increment),
		Digest:              e.digest,
	}
	if err := codec.Unmarshal(e.payload, &r.Payload); err != nil {
		return r, fmt.Errorf("decode session payload: %w", err)
	}
	return r, nil
}

// MarshalBinary encodes the envelope:
//
//	u8 version | [32]id | u8 initialized | i64 start | i64 current |
//	i64 expires | i64 increment | u8 len + digest | u32 len + payload
//
// Integers are big-endian, timestamps are Unix nanoseconds.
func (e *envelope) MarshalBinary() ([]byte, error) {
	if len(e.digest) > maxDigestLen {
		return nil, fmt.Errorf("%w: digest too long", ErrMalformedRecord)
	}
	if uint64(len(e.payload)) > maxPayloadLen {
		return nil, fmt.Errorf("%w: payload too large", ErrMalformedRecord)
	}

	var buf bytes.Buffer
	buf.Grow(1 + IDSize + 1 + 4*8 + 1 + len(e.digest) + 4 + len(e.payload))

	buf.WriteByte(recordFormatVersion)
	buf.Write(e.id[:])
	buf.WriteByte(boolByte(e.initialized))

	var scratch [8]byte
	for _, v := range [...]int64{e.start, e.current, e.expires, e.increment} {
		binary.BigEndian.PutUint64(scratch[:], uint64(v))
		buf.Write(scratch[:])
	}

	buf.WriteByte(byte(len(e.digest)))
	buf.Write(e.digest)

	binary.BigEndian.PutUint32(scratch[:4], uint32(len(e.payload)))
	buf.Write(scratch[:4])
	buf.Write(e.payload)

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary. Unknown
// versions, truncated input and trailing bytes are rejected.
func (e *envelope) UnmarshalBinary(data []byte) error {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if version != recordFormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	if _, err := io.ReadFull(reader, e.id[:]); err != nil {
		return fmt.Errorf("%w: id: %v", ErrMalformedRecord, err)
	}

	initialized, err := reader.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: initialized: %v", ErrMalformedRecord, err)
	}
	if initialized > 1 {
		return fmt.Errorf("%w: initialized flag %d", ErrMalformedRecord, initialized)
	}
	e.initialized = initialized == 1

	for _, dst := range [...]*int64{&e.start, &e.current, &e.expires, &e.increment} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return fmt.Errorf("%w: timestamps: %v", ErrMalformedRecord, err)
		}
	}

	digestLen, err := reader.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: digest length: %v", ErrMalformedRecord, err)
	}
	e.digest = nil
	if digestLen > 0 {
		e.digest = make([]byte, digestLen)
		if _, err := io.ReadFull(reader, e.digest); err != nil {
			return fmt.Errorf("%w: digest: %v", ErrMalformedRecord, err)
		}
	}

	var payloadLen uint32
	if err := binary.Read(reader, binary.BigEndian, &payloadLen); err != nil {
		return fmt.Errorf("%w: payload length: %v", ErrMalformedRecord, err)
	}
	if int64(payloadLen) > int64(reader.Len()) {
		return fmt.Errorf("%w: payload truncated", ErrMalformedRecord)
	}
	e.payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(reader, e.payload); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformedRecord, err)
	}

	if reader.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedRecord, reader.Len())
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
