// Package keyexchange runs the one-shot startup handshake with the remote partner service.
//
// The client seals its identifier and public key for the partner with the hybrid codec, POSTs the sealed message as
// JSON and receives an API key encrypted directly to its own public key. The handshake runs at most once per process:
// there are no retries, and a failure leaves the process without a shared secret until it is restarted.
//
// The partner's public key is trusted purely because it is configured. Its JWK thumbprint is logged at startup so an
// operator can compare it against the value published by the partner.
package keyexchange
