package envelope

import (
	"strconv"
	"time"

	"github.com/tudl/bugit/internal/crypterr"
)

// DateLayout is the canonical text form of date-only fields.
const DateLayout = time.DateOnly

// Fields encrypts typed values as their canonical text form. A value that
// decrypts but does not parse as the expected type is a decryption failure:
// the stored data is not what the column claims to hold.
type Fields struct {
	Cipher FieldCipher
}

// NewFields returns Fields backed by c.
func NewFields(c FieldCipher) Fields {
	return Fields{Cipher: c}
}

func (f Fields) EncryptString(v string) (string, error) {
	return f.Cipher.Encrypt(v)
}

func (f Fields) DecryptString(envelope string) (string, error) {
	return f.Cipher.Decrypt(envelope)
}

func (f Fields) EncryptFloat(v float64) (string, error) {
	return f.Cipher.Encrypt(strconv.FormatFloat(v, 'f', -1, 64))
}

func (f Fields) DecryptFloat(envelope string) (float64, error) {
	s, err := f.Cipher.Decrypt(envelope)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, crypterr.Newf(crypterr.KindDecryption, "envelope.DecryptFloat", "decrypted value is not a number")
	}
	return v, nil
}

func (f Fields) EncryptInt(v int64) (string, error) {
	return f.Cipher.Encrypt(strconv.FormatInt(v, 10))
}

func (f Fields) DecryptInt(envelope string) (int64, error) {
	s, err := f.Cipher.Decrypt(envelope)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, crypterr.Newf(crypterr.KindDecryption, "envelope.DecryptInt", "decrypted value is not an integer")
	}
	return v, nil
}

func (f Fields) EncryptBool(v bool) (string, error) {
	return f.Cipher.Encrypt(strconv.FormatBool(v))
}

func (f Fields) DecryptBool(envelope string) (bool, error) {
	s, err := f.Cipher.Decrypt(envelope)
	if err != nil {
		return false, err
	}

	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, crypterr.Newf(crypterr.KindDecryption, "envelope.DecryptBool", "decrypted value is not a boolean")
	}
}

// EncryptDate stores the calendar date of t; the time of day and location are
// dropped.
func (f Fields) EncryptDate(t time.Time) (string, error) {
	return f.Cipher.Encrypt(t.Format(DateLayout))
}

// DecryptDate returns the stored date at midnight UTC.
func (f Fields) DecryptDate(envelope string) (time.Time, error) {
	s, err := f.Cipher.Decrypt(envelope)
	if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, crypterr.Newf(crypterr.KindDecryption, "envelope.DecryptDate", "decrypted value is not a %s date", DateLayout)
	}
	return t, nil
}

// EncryptOptional leaves absent values absent, for nullable columns such as
// the end date of a recurring spending.
func (f Fields) EncryptOptional(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}

	out, err := f.Cipher.Encrypt(*v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (f Fields) DecryptOptional(envelope *string) (*string, error) {
	if envelope == nil {
		return nil, nil
	}

	out, err := f.Cipher.Decrypt(*envelope)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
