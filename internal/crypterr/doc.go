// Package crypterr classifies failures of the cryptographic core into a small
// set of kinds, so that callers can tell a data-integrity failure apart from a
// configuration or transport failure without inspecting error strings.
//
// Every error produced by the envelope, hybrid, keymaterial and keyexchange
// packages is an *Error carrying one Kind. Use errors.Is with the sentinel
// values, or KindOf, to branch on it:
//
//	plaintext, err := cipher.Decrypt(stored)
//	if errors.Is(err, crypterr.ErrDecryption) {
//		// the stored value was tampered with or encrypted under another key
//	}
package crypterr
