package hybrid

import (
	"bytes"
	"crypto/subtle"
	"errors"
)

var errInvalidPadding = errors.New("invalid PKCS#5 padding")

// pad appends PKCS#5/PKCS#7 padding. A full block is added when len(data) is already a multiple of blockSize.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize

	out := make([]byte, len(data), len(data)+n)
	copy(out, data)

	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#5/PKCS#7 padding, checking every padding byte.
func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errInvalidPadding
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, errInvalidPadding
	}

	want := bytes.Repeat([]byte{byte(n)}, n)
	if subtle.ConstantTimeCompare(data[len(data)-n:], want) != 1 {
		return nil, errInvalidPadding
	}

	return data[:len(data)-n], nil
}
