package keyexchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"k8s.io/client-go/transport"
	"k8s.io/klog/v2"

	"github.com/tudl/bugit/internal/crypterr"
	"github.com/tudl/bugit/internal/envelope/hybrid"
	"github.com/tudl/bugit/internal/keymaterial"
	"github.com/tudl/bugit/pkg/logs"
	"github.com/tudl/bugit/pkg/version"
)

const (
	// DefaultTimeout bounds the whole handshake when Config.Timeout is unset
	DefaultTimeout = 30 * time.Second

	// maxResponseBodySize is the largest response body we'll read; a real response is a few hundred bytes
	maxResponseBodySize = 64 * 1024

	// maxErrorBodySize is how much of a non-2xx response body is kept in the error
	maxErrorBodySize = 500
)

// ErrNoSharedSecret is returned by APIKey when no API key is held, either because the handshake has not run, failed,
// or the key has been destroyed.
var ErrNoSharedSecret = errors.New("no shared secret available")

// Payload is the plaintext sealed for the partner.
type Payload struct {
	ClientID string `json:"clientId"`

	// ClientPublicKey is this process's public key as base64 PKIX DER
	ClientPublicKey string `json:"clientPublicKey"`
}

// Response is the partner's reply to a successful handshake.
type Response struct {
	// EncryptedAPIKey is base64 RSA PKCS#1 v1.5 ciphertext of the API key under ClientPublicKey
	EncryptedAPIKey string `json:"encryptedApiKey"`
}

// Config configures a Client.
type Config struct {
	// ClientID identifies this service to the partner
	ClientID string

	// Endpoint is the absolute http(s) URL the sealed message is POSTed to
	Endpoint string

	// Timeout bounds the whole handshake, including reading the response. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client performs the handshake. It is safe to call State, Err and APIKey concurrently with Run.
type Client struct {
	cfg        Config
	keys       *keymaterial.KeyMaterial
	httpClient *http.Client

	mu     sync.Mutex
	state  State
	err    error
	apiKey []byte
	wiped  bool
}

// NewClient creates a Client. keys must hold both the local key pair and the partner's public key.
// If httpClient is nil, a default client is used which traces requests depending on the verbosity of the logger in
// the request context.
func NewClient(cfg Config, keys *keymaterial.KeyMaterial, httpClient *http.Client) (*Client, error) {
	const op = "keyexchange.NewClient"

	if cfg.ClientID == "" {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "client ID cannot be empty")
	}

	if err := ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, crypterr.New(crypterr.KindConfiguration, op, err)
	}

	if keys == nil || keys.LocalPrivateKey() == nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "a local key pair is required")
	}

	if keys.RemotePublicKey() == nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "the remote public key is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Transport: transport.NewDebuggingRoundTripper(http.DefaultTransport, transport.DebugByContext),
		}
	}

	return &Client{
		cfg:        cfg,
		keys:       keys,
		httpClient: httpClient,
	}, nil
}

// ValidateEndpoint checks that endpoint is an absolute http or https URL.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint %q is not a valid URL: %s", endpoint, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", endpoint)
	}

	if u.Host == "" {
		return fmt.Errorf("endpoint %q must be an absolute URL", endpoint)
	}

	return nil
}

// Run performs the handshake. It can only be called once; later calls return an error without any network I/O.
// The returned error is also kept for Err.
func (c *Client) Run(ctx context.Context) error {
	log := klog.FromContext(ctx).WithName("keyexchange")

	c.mu.Lock()
	if c.state != StateNotStarted {
		state := c.state
		c.mu.Unlock()
		return crypterr.Newf(crypterr.KindConfiguration, "keyexchange.Run", "key exchange can only run once, current state is %s", state)
	}
	c.state = StateSealing
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	apiKey, err := c.exchange(ctx)
	if err != nil {
		c.finish(StateFailed, nil, err)
		return err
	}

	c.finish(StateSucceeded, apiKey, nil)
	log.Info("Key exchange succeeded", "endpoint", c.cfg.Endpoint, "clientID", c.cfg.ClientID, "apiKeyBytes", len(apiKey))

	return nil
}

func (c *Client) exchange(ctx context.Context) ([]byte, error) {
	log := klog.FromContext(ctx).WithName("keyexchange")

	remote := c.keys.RemotePublicKey()
	if fingerprint, err := keymaterial.Fingerprint(remote); err == nil {
		log.Info("Starting key exchange", "endpoint", c.cfg.Endpoint, "clientID", c.cfg.ClientID, "remoteKeyThumbprint", fingerprint)
	}

	sealed, err := c.seal()
	if err != nil {
		return nil, err
	}

	log.V(logs.Debug).Info("Sealed handshake payload", "encryptedDataLength", len(sealed.EncryptedData))
	c.setState(StateAwaitingResponse)

	resp, err := c.send(ctx, sealed)
	if err != nil {
		return nil, err
	}

	apiKey, err := hybrid.DecryptSecret(resp.EncryptedAPIKey, c.keys.LocalPrivateKey())
	if err != nil {
		return nil, err
	}

	if len(apiKey) == 0 {
		return nil, crypterr.Newf(crypterr.KindHandshakeDecode, "keyexchange.Run", "decrypted API key is empty")
	}

	return apiKey, nil
}

func (c *Client) seal() (*hybrid.SealedMessage, error) {
	const op = "keyexchange.Run"

	pub, err := c.keys.PublicKeyBase64()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(Payload{
		ClientID:        c.cfg.ClientID,
		ClientPublicKey: pub,
	})
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "failed to encode handshake payload: %w", err)
	}

	return hybrid.Seal(string(payload), c.keys.RemotePublicKey())
}

func (c *Client) send(ctx context.Context, sealed *hybrid.SealedMessage) (*Response, error) {
	const op = "keyexchange.Run"

	encodedBody := &bytes.Buffer{}
	if err := json.NewEncoder(encodedBody).Encode(sealed); err != nil {
		return nil, crypterr.Newf(crypterr.KindEncryption, op, "failed to encode sealed message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, encodedBody)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindConfiguration, op, "failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	version.SetUserAgent(req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, crypterr.Newf(crypterr.KindHandshakeTransport, op, "failed to send key exchange request to %s: %w", c.cfg.Endpoint, err)
	}
	defer res.Body.Close()

	if code := res.StatusCode; code < 200 || code >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		if len(body) == 0 {
			body = []byte(`<empty body>`)
		}
		return nil, crypterr.Newf(crypterr.KindHandshakeTransport, op, "received response with status code %d: %s", code, bytes.TrimSpace(body))
	}

	var response Response
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBodySize)).Decode(&response); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, crypterr.Newf(crypterr.KindHandshakeDecode, op, "rejecting JSON response from server as it was too large or was truncated")
		}

		if ctx.Err() != nil {
			return nil, crypterr.Newf(crypterr.KindHandshakeTransport, op, "failed to read key exchange response: %w", err)
		}

		return nil, crypterr.Newf(crypterr.KindHandshakeDecode, op, "failed to parse JSON from otherwise successful key exchange request: %s", err)
	}

	if response.EncryptedAPIKey == "" {
		return nil, crypterr.Newf(crypterr.KindHandshakeDecode, op, "response is missing encryptedApiKey")
	}

	return &response, nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = s
}

func (c *Client) finish(s State, apiKey []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = s
	c.apiKey = apiKey
	c.err = err
}

// State returns the current handshake state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Err returns the error that failed the handshake, or nil.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// APIKey returns the shared secret learned by a successful handshake. It never returns an empty key without an error.
func (c *Client) APIKey() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.wiped:
		return "", fmt.Errorf("%w: the shared secret has been destroyed", ErrNoSharedSecret)
	case c.state == StateFailed:
		return "", fmt.Errorf("%w: key exchange failed: %w", ErrNoSharedSecret, c.err)
	case c.state != StateSucceeded:
		return "", fmt.Errorf("%w: key exchange is in state %s", ErrNoSharedSecret, c.state)
	}

	return string(c.apiKey), nil
}

// Destroy zeroes the held API key. Later calls to APIKey fail.
func (c *Client) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.apiKey)
	c.apiKey = nil
	c.wiped = true
}
