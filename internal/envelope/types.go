package envelope

// FieldCipher encrypts and decrypts single field values. CRUD code depends on
// this interface rather than on *Cipher so that it can be faked in tests.
type FieldCipher interface {
	// Encrypt returns the Envelope for plaintext.
	Encrypt(plaintext string) (string, error)
	// Decrypt returns the plaintext sealed in envelope. It never returns
	// partial plaintext: on error the returned string is empty.
	Decrypt(envelope string) (string, error)
}

// Compile-time check that Cipher implements FieldCipher
var _ FieldCipher = (*Cipher)(nil)
