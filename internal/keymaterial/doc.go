// Package keymaterial holds the process-wide key material: the 256-bit
// symmetric master key that protects stored fields, this process's RSA
// keypair, and the remote partner's RSA public key.
//
// A *KeyMaterial is constructed once at startup, before any cipher or
// handshake component exists, and is never mutated afterwards except by
// Destroy at process exit.
//
// The remote public key is trusted purely because it is configured. No
// certificate chain or pinning is verified here; Fingerprint exists so that
// operators can compare keys out of band.
package keymaterial
