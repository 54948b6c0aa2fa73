package envelope_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tudl/bugit/internal/crypterr"
	"github.com/tudl/bugit/internal/envelope"
)

func TestFields_RoundTrip(t *testing.T) {
	f := envelope.NewFields(newTestCipher(t, 0x55))

	t.Run("float", func(t *testing.T) {
		for _, v := range []float64{0, 1234.5, -0.01, 1e21} {
			env, err := f.EncryptFloat(v)
			require.NoError(t, err)

			got, err := f.DecryptFloat(env)
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("float canonical text", func(t *testing.T) {
		env, err := f.EncryptFloat(1234.50)
		require.NoError(t, err)

		s, err := f.DecryptString(env)
		require.NoError(t, err)
		assert.Equal(t, "1234.5", s)
	})

	t.Run("int", func(t *testing.T) {
		env, err := f.EncryptInt(-42)
		require.NoError(t, err)

		got, err := f.DecryptInt(env)
		require.NoError(t, err)
		assert.Equal(t, int64(-42), got)
	})

	t.Run("bool", func(t *testing.T) {
		for _, v := range []bool{true, false} {
			env, err := f.EncryptBool(v)
			require.NoError(t, err)

			got, err := f.DecryptBool(env)
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("date", func(t *testing.T) {
		in := time.Date(2024, time.February, 29, 17, 30, 0, 0, time.FixedZone("CET", 3600))
		env, err := f.EncryptDate(in)
		require.NoError(t, err)

		got, err := f.DecryptDate(env)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("optional", func(t *testing.T) {
		env, err := f.EncryptOptional(nil)
		require.NoError(t, err)
		assert.Nil(t, env)

		got, err := f.DecryptOptional(nil)
		require.NoError(t, err)
		assert.Nil(t, got)

		v := "2025-12-31"
		env, err = f.EncryptOptional(&v)
		require.NoError(t, err)
		require.NotNil(t, env)
		assert.NotEqual(t, v, *env)

		got, err = f.DecryptOptional(env)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, v, *got)
	})
}

func TestFields_TypeMismatchIsDecryptionFailure(t *testing.T) {
	f := envelope.NewFields(newTestCipher(t, 0x66))

	env, err := f.EncryptString("not a number")
	require.NoError(t, err)

	_, err = f.DecryptFloat(env)
	require.ErrorIs(t, err, crypterr.ErrDecryption)

	_, err = f.DecryptInt(env)
	require.ErrorIs(t, err, crypterr.ErrDecryption)

	_, err = f.DecryptBool(env)
	require.ErrorIs(t, err, crypterr.ErrDecryption)

	_, err = f.DecryptDate(env)
	require.ErrorIs(t, err, crypterr.ErrDecryption)
}

func TestFields_PropagatesIntegrityFailure(t *testing.T) {
	f := envelope.NewFields(newTestCipher(t, 0x77))
	other := envelope.NewFields(newTestCipher(t, 0x78))

	env, err := f.EncryptFloat(99.99)
	require.NoError(t, err)

	got, err := other.DecryptFloat(env)
	require.ErrorIs(t, err, crypterr.ErrDecryption)
	assert.Zero(t, got)

	opt, err := other.DecryptOptional(&env)
	require.ErrorIs(t, err, crypterr.ErrDecryption)
	assert.Nil(t, opt)
}
