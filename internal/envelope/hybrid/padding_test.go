package hybrid

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPad(t *testing.T) {
	for _, n := range []int{0, 1, 7, 15, 16, 17, 31, 32, 100} {
		data := bytes.Repeat([]byte{0xAB}, n)

		padded := pad(data, 16)
		require.Zero(t, len(padded)%16, "len %d", n)
		require.Greater(t, len(padded), n)

		got, err := unpad(padded, 16)
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
}

func TestUnpad_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"empty":          {},
		"not aligned":    bytes.Repeat([]byte{0x01}, 15),
		"zero pad byte":  append(bytes.Repeat([]byte{0x41}, 15), 0x00),
		"pad too large":  append(bytes.Repeat([]byte{0x41}, 15), 0x11),
		"inconsistent":   append(bytes.Repeat([]byte{0x41}, 13), 0x02, 0x03, 0x03),
		"full bad block": append(bytes.Repeat([]byte{0x10}, 15), 0x0F),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := unpad(data, 16)
			require.ErrorIs(t, err, errInvalidPadding)
		})
	}
}
