// Package validation checks inbound requests against the OpenID Connect profile
// of the metadata query protocol.
package validation

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// MediaTypeJSON is plain JSON metadata
	MediaTypeJSON = "application/json"
	// MediaTypeJWT is metadata wrapped in a signed token
	MediaTypeJWT = "application/jwt"
	// SigningAlgParam is the query parameter selecting the signing algorithm
	SigningAlgParam = "signing_alg"
)

// Failure is a request rejected by the validator, StatusCode is the HTTP status to answer with.
type Failure struct {
	StatusCode int
	Message    string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return http.StatusText(f.StatusCode)
	}
	return f.Message
}

func fail(code int, msg string) *Failure {
	return &Failure{StatusCode: code, Message: msg}
}

// RequestValidator validates requests, it holds no mutable state and is safe for concurrent use
type RequestValidator struct {
	acceptTypes map[string]struct{}
	signingAlgs map[string]struct{}
	algParam    string
}

// NewRequestValidator creates a validator accepting the given media types and signing algorithms.
// An empty algParam defaults to signing_alg.
func NewRequestValidator(acceptTypes []string, signingAlgs []string, algParam string) *RequestValidator {
	if algParam == "" {
		algParam = SigningAlgParam
	}
	v := &RequestValidator{
		acceptTypes: make(map[string]struct{}, len(acceptTypes)),
		signingAlgs: make(map[string]struct{}, len(signingAlgs)),
		algParam:    algParam,
	}
	for _, t := range acceptTypes {
		v.acceptTypes[strings.ToLower(t)] = struct{}{}
	}
	for _, a := range signingAlgs {
		v.signingAlgs[a] = struct{}{}
	}
	return v
}

// AlgorithmParam is the name of the query parameter holding the signing algorithm
func (v *RequestValidator) AlgorithmParam() string {
	return v.algParam
}

// Validate checks the request and returns the negotiated media type.
// Checks run in a fixed order, the first violation wins.
func (v *RequestValidator) Validate(r *http.Request) (string, error) {
	if !r.ProtoAtLeast(1, 1) {
		return "", fail(http.StatusHTTPVersionNotSupported, "HTTP/1.1 or later is required")
	}
	if r.Method != http.MethodGet {
		return "", fail(http.StatusMethodNotAllowed, fmt.Sprintf("method %s is not allowed", r.Method))
	}
	mediaType, ok := v.negotiate(r.Header.Values("Accept"))
	if !ok {
		return "", fail(http.StatusNotAcceptable, "none of the requested media types is supported")
	}
	if mediaType == MediaTypeJWT {
		query := r.URL.Query()
		if query.Has(v.algParam) {
			alg := query.Get(v.algParam)
			if _, ok := v.signingAlgs[alg]; !ok {
				return "", fail(http.StatusBadRequest,
					fmt.Sprintf("JWT requested, but the signing algorithm '%s' is not supported.", alg))
			}
		}
	}
	return mediaType, nil
}

// negotiate returns the supported media type with the highest quality value,
// ties go to the range listed first. Ranges with q=0 or an unreadable q are refused.
func (v *RequestValidator) negotiate(accept []string) (string, bool) {
	best, bestQ := "", 0.0
	for _, header := range accept {
		for _, mediaRange := range strings.Split(header, ",") {
			mt, params, _ := strings.Cut(mediaRange, ";")
			mt = strings.ToLower(strings.TrimSpace(mt))
			if _, ok := v.acceptTypes[mt]; !ok {
				continue
			}
			q, ok := quality(params)
			if !ok || q <= 0 {
				continue
			}
			if q > bestQ {
				best, bestQ = mt, q
			}
		}
	}
	return best, best != ""
}

// quality reads the q parameter of a media range, absent means 1
func quality(params string) (float64, bool) {
	for _, param := range strings.Split(params, ";") {
		name, value, _ := strings.Cut(param, "=")
		if !strings.EqualFold(strings.TrimSpace(name), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || q < 0 || q > 1 {
			return 0, false
		}
		return q, true
	}
	return 1, true
}
