package keyexchange

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"k8s.io/client-go/transport"

	"github.com/tudl/bugit/internal/envelope/hybrid"
	"github.com/tudl/bugit/internal/keymaterial"
	"github.com/tudl/bugit/pkg/version"
)

const (
	// MockEndpointPath is the path the mock partner serves the handshake on
	MockEndpointPath = "/api/key-exchange"

	// MockClientID is accepted by the mock partner and answered with MockAPIKey
	MockClientID = "FINANCE_API"

	// MockAPIKey is the API key handed out by the mock partner
	MockAPIKey = "mock-api-key-7d1f0c2b9e"

	// The following client IDs trigger failure responses from the mock partner
	MockServerErrorClientID  = "server-error"
	MockInvalidJSONClientID  = "invalid-json"
	MockMissingFieldClientID = "missing-field"
	MockOversizeClientID     = "oversize"
	MockWrongKeyClientID     = "wrong-key"
	MockSlowClientID         = "slow"
)

// MockRemote is a mock partner service. It really unseals each request with the partner private key and encrypts
// MockAPIKey to the public key the client sent.
type MockRemote struct {
	t      testing.TB
	remote *rsa.PrivateKey

	// Requests counts the handshake requests received
	Requests atomic.Int32
}

// MockRemoteServer starts a TLS server that mocks the partner key exchange API, and an HTTP client with the CA certs
// needed to connect to it.
//
// The returned URL is the full handshake endpoint. The returned HTTP client has a transport which logs requests and
// responses depending on log level of the logger supplied in the context.
func MockRemoteServer(t testing.TB, remote *rsa.PrivateKey) (*MockRemote, string, *http.Client) {
	mr := &MockRemote{
		t:      t,
		remote: remote,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+MockEndpointPath, mr.handleKeyExchange)

	server := httptest.NewTLSServer(mux)
	t.Cleanup(server.Close)

	httpClient := server.Client()
	httpClient.Transport = transport.NewDebuggingRoundTripper(httpClient.Transport, transport.DebugByContext)

	return mr, server.URL + MockEndpointPath, httpClient
}

func (mr *MockRemote) handleKeyExchange(w http.ResponseWriter, r *http.Request) {
	mr.Requests.Add(1)
	mr.t.Log(r.Method, r.RequestURI)

	if r.Header.Get("User-Agent") != version.UserAgent() {
		http.Error(w, "should set user agent on all requests", http.StatusInternalServerError)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "should send JSON on all requests", http.StatusInternalServerError)
		return
	}

	var sealed hybrid.SealedMessage

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&sealed); err != nil {
		http.Error(w, `{"error": "Invalid request format"}`, http.StatusBadRequest)
		return
	}

	plaintext, err := hybrid.Unseal(&sealed, mr.remote)
	if err != nil {
		http.Error(w, "failed to unseal request: "+err.Error(), http.StatusBadRequest)
		return
	}

	var payload Payload
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		http.Error(w, "sealed payload is not JSON", http.StatusBadRequest)
		return
	}

	clientKey, err := keymaterial.ParsePublicKeyBase64(payload.ClientPublicKey)
	if err != nil {
		http.Error(w, "invalid client public key", http.StatusBadRequest)
		return
	}

	// the reply below goes to whichever key was in the payload
	replyKey := clientKey

	switch payload.ClientID {
	case MockClientID:
	case MockServerErrorClientID:
		http.Error(w, "mock error", http.StatusInternalServerError)
		return
	case MockInvalidJSONClientID:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"encryptedApiKey": 42}`))
		return
	case MockMissingFieldClientID:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
		return
	case MockOversizeClientID:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"encryptedApiKey": "` + strings.Repeat("A", 128*1024) + `"}`))
		return
	case MockWrongKeyClientID:
		replyKey = &mr.remote.PublicKey
	case MockSlowClientID:
		<-r.Context().Done()
		return
	default:
		http.Error(w, "unknown client ID", http.StatusForbidden)
		return
	}

	encrypted, err := hybrid.EncryptSecret([]byte(MockAPIKey), replyKey)
	if err != nil {
		http.Error(w, "failed to encrypt API key", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{EncryptedAPIKey: encrypted})
}
