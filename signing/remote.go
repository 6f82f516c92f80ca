package signing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	remoteSignPath  = "/0/%s/sign"
	remoteMechanism = "RSAPKCS1"
	// RequestIDHeader correlates a signing call with the logs of the signing service
	RequestIDHeader = "X-Request-Id"
)

type remoteSignRequest struct {
	Mech string `json:"mech"`
	Data string `json:"data"`
}

type remoteSignResponse struct {
	Signed string `json:"signed"`
}

// RemoteSigner delegates signing to a signing service holding the key identified by kid
type RemoteSigner struct {
	log    *zap.Logger
	url    string
	kid    string
	client *http.Client
	algs   []string
}

// NewRemoteSigner creates a signer posting to <baseURL>/0/<kid>/sign.
// algs lists what the backing key supports, the timeout bounds every call.
func NewRemoteSigner(log *zap.Logger, baseURL string, kid string, timeout time.Duration, algs []string) (*RemoteSigner, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid signing service url: %w", err)
	}
	endpoint := base.ResolveReference(&url.URL{Path: fmt.Sprintf(remoteSignPath, kid)})
	if len(algs) == 0 {
		algs = []string{"RS256"}
	}
	withNone := []string{AlgNone}
	for _, a := range algs {
		if a != AlgNone {
			withNone = append(withNone, a)
		}
	}
	return &RemoteSigner{
		log:    log,
		url:    endpoint.String(),
		kid:    kid,
		client: &http.Client{Timeout: timeout},
		algs:   withNone,
	}, nil
}

// Algorithms implements Signer
func (s *RemoteSigner) Algorithms() []string {
	out := make([]string, len(s.algs))
	copy(out, s.algs)
	return out
}

// Endpoint is the url signing requests are posted to
func (s *RemoteSigner) Endpoint() string {
	return s.url
}

// Sign implements Signer
func (s *RemoteSigner) Sign(ctx context.Context, payload []byte, alg string) ([]byte, error) {
	if alg == AlgNone {
		return unsecured(payload)
	}
	if !s.supports(alg) {
		s.log.Warn("Failed to sign: algorithm not supported by signing service", zap.String("alg", alg))
		return nil, ErrSigningFailed
	}
	body, err := json.Marshal(remoteSignRequest{
		Mech: remoteMechanism,
		Data: base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		return nil, ErrSigningFailed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.log.Error("Failed to create signing request", zap.Error(err))
		return nil, ErrSigningFailed
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("Failed to connect to signing server", zap.String("request_id", requestID), zap.Error(err))
		return nil, ErrSigningFailed
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.log.Error("Failed to read signing response", zap.String("request_id", requestID), zap.Error(err))
		return nil, ErrSigningFailed
	}
	if resp.StatusCode != http.StatusOK {
		s.log.Error("Failed to sign",
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("message", content))
		return nil, ErrSigningFailed
	}
	var signed remoteSignResponse
	if err := json.Unmarshal(content, &signed); err != nil || signed.Signed == "" {
		s.log.Error("Malformed signing response", zap.String("request_id", requestID), zap.Error(err))
		return nil, ErrSigningFailed
	}
	out, err := base64.StdEncoding.DecodeString(signed.Signed)
	if err != nil {
		s.log.Error("Malformed signing response", zap.String("request_id", requestID), zap.Error(err))
		return nil, ErrSigningFailed
	}
	return out, nil
}

func (s *RemoteSigner) supports(alg string) bool {
	for _, a := range s.algs {
		if a == alg {
			return true
		}
	}
	return false
}
