// Package mdq implements the OpenID Connect profile of the metadata query protocol:
// validate, resolve the entity, serialize and optionally sign its metadata.
package mdq

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eisenwinter/mdqd/metadata"
	"github.com/eisenwinter/mdqd/pkg/sanitize"
	"github.com/eisenwinter/mdqd/signing"
	"github.com/eisenwinter/mdqd/validation"
	"go.uber.org/zap"
)

// EncodedIDPrefix marks an entity id given as URL-safe base64
const EncodedIDPrefix = "{b64}"

var (
	// ErrSigningUnsupported is returned for application/jwt requests when no signer is configured
	ErrSigningUnsupported = errors.New("signed responses are not supported")
)

// Recorder is notified about signing attempts
type Recorder interface {
	SigningCompleted(alg string, success bool)
}

type noopRecorder struct{}

func (noopRecorder) SigningCompleted(string, bool) {}

type unknownEntityError struct {
	id string
}

func (e *unknownEntityError) Error() string {
	return fmt.Sprintf("Unknown entity id '%s'", e.id)
}

func (e *unknownEntityError) Unwrap() error {
	return metadata.ErrNotFound
}

// Response is a successful answer to a metadata query
type Response struct {
	Body         []byte
	ContentType  string
	LastModified time.Time
	MaxAge       time.Duration
}

// CacheControl is the Cache-Control header value for the response
func (r *Response) CacheControl() string {
	return fmt.Sprintf("max-age=%d", int64(r.MaxAge/time.Second))
}

// Handler answers metadata queries from the current store snapshot
type Handler struct {
	log       *zap.Logger
	store     *metadata.Store
	validator *validation.RequestValidator
	signer    signing.Signer
	maxAge    time.Duration
	recorder  Recorder
}

// NewHandler creates a query handler, signer may be nil in which case signed responses are refused.
// maxAge should equal the metadata refresh interval.
func NewHandler(
	log *zap.Logger,
	store *metadata.Store,
	validator *validation.RequestValidator,
	signer signing.Signer,
	maxAge time.Duration,
) *Handler {
	return &Handler{
		log:       log,
		store:     store,
		validator: validator,
		signer:    signer,
		maxAge:    maxAge,
		recorder:  noopRecorder{},
	}
}

// WithRecorder sets the recorder receiving signing outcomes
func (h *Handler) WithRecorder(recorder Recorder) *Handler {
	if recorder != nil {
		h.recorder = recorder
	}
	return h
}

// Query answers the request for entityID, an empty entityID queries all entities.
// Errors can be turned into a status code with StatusCode and a client message with Message.
func (h *Handler) Query(r *http.Request, entityID string) (*Response, error) {
	mediaType, err := h.validator.Validate(r)
	if err != nil {
		h.log.Info("Malformed request", sanitize.UserInputString("reason", err.Error()))
		return nil, err
	}

	id, err := ResolveEntityID(entityID)
	if err != nil {
		h.log.Info("Malformed entity id", sanitize.UserInputString("entity_id", entityID))
		return nil, err
	}

	var entry metadata.Entry
	if id == "" {
		entry = h.store.All()
	} else {
		entry, err = h.store.Get(id)
		if err != nil {
			h.log.Info("Unknown entity id", sanitize.UserInputString("entity_id", id))
			return nil, &unknownEntityError{id: id}
		}
	}

	body, err := canonicalJSON(entry.Metadata)
	if err != nil {
		h.log.Error("Could not serialize metadata", sanitize.UserInputString("entity_id", id), zap.Error(err))
		return nil, err
	}

	resp := &Response{
		Body:         body,
		ContentType:  validation.MediaTypeJSON,
		LastModified: entry.LastModified,
		MaxAge:       h.maxAge,
	}
	if mediaType != validation.MediaTypeJWT {
		return resp, nil
	}

	if h.signer == nil {
		return nil, ErrSigningUnsupported
	}
	alg := signing.AlgNone
	if query := r.URL.Query(); query.Has(h.validator.AlgorithmParam()) {
		alg = query.Get(h.validator.AlgorithmParam())
	}
	signed, err := h.signer.Sign(r.Context(), body, alg)
	h.recorder.SigningCompleted(alg, err == nil)
	if err != nil {
		h.log.Info("Signing failed", sanitize.UserInputString("entity_id", id), sanitize.UserInputString("alg", alg))
		return nil, signing.ErrSigningFailed
	}
	resp.Body = signed
	resp.ContentType = validation.MediaTypeJWT
	return resp, nil
}

// ResolveEntityID decodes ids carrying the {b64} prefix, other ids are returned as is
func ResolveEntityID(raw string) (string, error) {
	encoded, ok := strings.CutPrefix(raw, EncodedIDPrefix)
	if !ok {
		return raw, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(encoded)
	}
	if err != nil || len(decoded) == 0 {
		return "", &validation.Failure{
			StatusCode: http.StatusBadRequest,
			Message:    "Malformed base64url encoded entity id.",
		}
	}
	return string(decoded), nil
}

// EncodeEntityID is the inverse of ResolveEntityID
func EncodeEntityID(id string) string {
	return EncodedIDPrefix + base64.URLEncoding.EncodeToString([]byte(id))
}

// StatusCode maps an error returned by Query to a HTTP status code
func StatusCode(err error) int {
	var failure *validation.Failure
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &failure):
		return failure.StatusCode
	case errors.Is(err, metadata.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSigningUnsupported), errors.Is(err, signing.ErrSigningFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message is the client facing text for an error returned by Query, it never contains internal causes
func Message(err error) string {
	var failure *validation.Failure
	var unknown *unknownEntityError
	switch {
	case errors.As(err, &failure):
		return failure.Error()
	case errors.As(err, &unknown):
		return unknown.Error()
	case errors.Is(err, ErrSigningUnsupported):
		return "Signed responses are not supported."
	case errors.Is(err, signing.ErrSigningFailed):
		return "Signing failed, algorithm unsupported or signing backend unavailable."
	default:
		return http.StatusText(http.StatusInternalServerError)
	}
}

func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
