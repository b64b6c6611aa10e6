package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/vovakirdan/wiredraw-server/internal/guide"
)

// HTTPReferences fetches guide references from the relay's reference API.
type HTTPReferences struct {
	base   string
	client *http.Client

	mu    sync.Mutex
	cache map[string]*guide.Reference
}

// NewHTTPReferences serves references from <base>/api/references/<id>.
func NewHTTPReferences(base string, client *http.Client) *HTTPReferences {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPReferences{base: base, client: client, cache: make(map[string]*guide.Reference)}
}

// Load fetches and parses a reference.
func (h *HTTPReferences) Load(ctx context.Context, id string) (*guide.Reference, error) {
	h.mu.Lock()
	ref, ok := h.cache[id]
	h.mu.Unlock()
	if ok {
		return ref, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/api/references/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reference %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch reference %s: %s", id, resp.Status)
	}

	ref, err = guide.Parse(id, resp.Body)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.cache[id] = ref
	h.mu.Unlock()
	return ref, nil
}
