package codec

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBook struct {
	ID     int64    `msgpack:"id"`
	Title  string   `msgpack:"title"`
	Genres []string `msgpack:"genres"`
	Rating float64  `msgpack:"rating"`
}

func TestRoundTripString(t *testing.T) {
	data, err := Encode("ruby programming")
	require.NoError(t, err)
	var out string
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, "ruby programming", out)
}

func TestRoundTripStruct(t *testing.T) {
	in := testBook{ID: 42, Title: "The Pragmatic Programmer", Genres: []string{"software", "reference"}, Rating: 4.5}
	data, err := Encode(in)
	require.NoError(t, err)
	var out testBook
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestRoundTripNestedMap(t *testing.T) {
	in := map[string]any{
		"total": int64(3),
		"items": []any{"a", "b", "c"},
		"meta":  map[string]any{"page": int64(1)},
	}
	data, err := Encode(in)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, "a", out["items"].([]any)[0])
	assert.Len(t, out["items"], 3)
}

func TestRoundTripNil(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	val, err := DecodeValue(data)
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestDecodeCorruptBytes(t *testing.T) {
	// 0xc1 is reserved in msgpack and never valid.
	err := Decode([]byte{0xc1, 0x00, 0x01}, new(string))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeserialization))
}

func TestDecodeEmpty(t *testing.T) {
	var out string
	err := Decode(nil, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeserialization))
}

func TestDecodeWrongShape(t *testing.T) {
	data, err := Encode([]string{"not", "a", "struct"})
	require.NoError(t, err)
	var out testBook
	err = Decode(data, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeserialization))
}
