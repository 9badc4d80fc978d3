package xsession

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// PayloadCodec defines how the application payload is serialized to and
// from bytes. The same bytes are persisted and fed to the integrity digest,
// so Marshal should be deterministic for a given value.
type PayloadCodec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte, v *T) error
}

// Ensure the provided codecs implement PayloadCodec.
var (
	_ PayloadCodec[struct{}] = GobCodec[struct{}]{}
	_ PayloadCodec[struct{}] = JSONCodec[struct{}]{}
)

// GobCodec is the default PayloadCodec, using encoding/gob. Gob writes map
// entries in iteration order, so payloads holding maps should prefer
// JSONCodec if ComputeHash must be stable across calls.
type GobCodec[T any] struct{}

// Marshal serializes v using gob encoding.
func (GobCodec[T]) Marshal(v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes data into v using gob decoding.
func (GobCodec[T]) Unmarshal(data []byte, v *T) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// JSONCodec is a PayloadCodec using encoding/json. Map keys are sorted,
// which keeps the encoding deterministic.
type JSONCodec[T any] struct{}

// Marshal serializes v as JSON.
func (JSONCodec[T]) Marshal(v T) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON data into v.
func (JSONCodec[T]) Unmarshal(data []byte, v *T) error {
	return json.Unmarshal(data, v)
}

// checkSerializable round-trips the zero value of T through codec. Codecs
// that panic on T (gob does for nil pointers) are reported as errors.
func checkSerializable[T any](codec PayloadCodec[T]) (err error) {
	var zero T
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %T: %v", ErrNotSerializable, zero, r)
		}
	}()

	data, err := codec.Marshal(zero)
	if err != nil {
		return fmt.Errorf("%w: %T: %v", ErrNotSerializable, zero, err)
	}
	var back T
	if err := codec.Unmarshal(data, &back); err != nil {
		return fmt.Errorf("%w: %T: %v", ErrNotSerializable, zero, err)
	}
	return nil
}
