// Package envelope implements authenticated encryption of individual stored
// field values under the process master key.
//
// Each call to Encrypt draws a fresh random 96-bit IV and produces a
// self-contained Envelope:
//
//	base64( IV[12] || AES-256-GCM ciphertext || tag[16] )
//
// Envelopes are independently decryptable with the same master key and
// nothing else. Encryption is deliberately non-deterministic: the same
// plaintext never produces the same Envelope twice.
//
// Numbers, booleans and dates are stored as their canonical text form; see
// Fields for typed helpers.
package envelope
