// Package codec serializes cache values to opaque bytes and back.
//
// The cache backends store only []byte; this package is the single place
// that knows how values are encoded. The format is msgpack
// ([github.com/vmihailenco/msgpack/v5]), which round-trips primitives,
// structs with exported fields, maps, slices, and pointers.
//
// Decode failures are wrapped with [ErrDeserialization] so callers can
// distinguish "the stored bytes are garbage" from their own errors and
// treat the entry as a cache miss.
package codec

import (
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrDeserialization marks errors from decoding corrupt or foreign bytes.
// Use errors.Is to detect it.
var ErrDeserialization = errors.New("codec: deserialization failed")

// Encode serializes v to msgpack bytes.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "codec: encode %T", v)
	}
	return data, nil
}

// Decode deserializes data into out, which must be a non-nil pointer.
// Errors are marked with ErrDeserialization.
func Decode(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return errors.Mark(errors.Wrap(err, "codec: decode"), ErrDeserialization)
	}
	return nil
}

// DecodeValue deserializes data into a dynamically-typed value. Maps decode
// as map[string]any and integers as the smallest type that fits, so callers
// needing exact types should use Decode with a typed destination.
func DecodeValue(data []byte) (any, error) {
	var out any
	if err := Decode(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
