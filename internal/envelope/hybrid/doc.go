// Package hybrid seals a payload for a single RSA recipient: the payload is encrypted with a one-time AES-128-CBC key
// and only that key is encrypted with RSA PKCS#1 v1.5. The message format is fixed by the key exchange partner.
//
// CBC carries no MAC, so a SealedMessage is only suitable for the one-shot key exchange where payload and recipient are
// fixed. Field storage uses the authenticated envelope.Cipher instead.
package hybrid
