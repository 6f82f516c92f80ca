package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxDocumentSize caps how much of a remote metadata document is read
const maxDocumentSize = 64 << 20

var (
	// ErrMalformedDocument signals a metadata document that is not a mapping of client ids to objects
	ErrMalformedDocument = errors.New("malformed metadata document")
)

// Source loads the complete client metadata mapping from some backing location.
type Source interface {
	Load(ctx context.Context) (map[string]any, error)
	String() string
}

// FileSource reads a JSON (or YAML, by extension) document from disk
type FileSource struct {
	path string
}

// NewFileSource returns a source for the given path, a file:// prefix is accepted
func NewFileSource(path string) *FileSource {
	return &FileSource{path: strings.TrimPrefix(path, "file://")}
}

func (f *FileSource) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("could not read metadata file: %w", err)
	}
	return decodeDocument(f.path, content)
}

func (f *FileSource) String() string {
	return f.path
}

// HTTPSource fetches the document with a GET request
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource returns a source fetching url, timeout bounds the whole request
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPSource) Load(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not fetch metadata: unexpected status %d", resp.StatusCode)
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("could not read metadata: %w", err)
	}
	name := req.URL.Path
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		name = "response.yaml"
	}
	return decodeDocument(name, content)
}

func (h *HTTPSource) String() string {
	return h.url
}

// NewSource picks a file or http source based on the location
func NewSource(location string, timeout time.Duration) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location, timeout)
	}
	return NewFileSource(location)
}

func decodeDocument(name string, content []byte) (map[string]any, error) {
	var doc map[string]any
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	default:
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is empty or null", ErrMalformedDocument)
	}
	for clientID, md := range doc {
		normalized, ok := normalizeValue(md).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: metadata of client %q is not an object", ErrMalformedDocument, clientID)
		}
		doc[clientID] = normalized
	}
	return doc, nil
}

// normalizeValue turns YAML mappings with non-string keys into JSON objects
func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeValue(inner)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}
