package guide

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/core"
)

var (
	ErrNotFound  = errors.New("reference not found")
	ErrInvalidID = errors.New("invalid reference id")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Library serves references stored as <id>.svg files in a directory.
// Parsed references and parse failures are cached.
type Library struct {
	fsys fs.FS
	log  *zerolog.Logger

	mu     sync.RWMutex
	cache  map[string]*Reference
	failed map[string]error
}

// NewLibrary opens the reference directory dir.
func NewLibrary(dir string, log *zerolog.Logger) *Library {
	return NewLibraryFS(os.DirFS(dir), log)
}

// NewLibraryFS serves references from fsys.
func NewLibraryFS(fsys fs.FS, log *zerolog.Logger) *Library {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Library{
		fsys:   fsys,
		log:    log,
		cache:  make(map[string]*Reference),
		failed: make(map[string]error),
	}
}

// Load returns the parsed reference id.
func (l *Library) Load(_ context.Context, id string) (*Reference, error) {
	if !validID.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	if ref, ok, err := l.cached(id); ok {
		return ref, err
	}

	f, err := l.fsys.Open(id + ".svg")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("open reference %s: %w", id, err)
	}
	defer f.Close()

	ref, err := Parse(id, f)
	if err != nil {
		l.mu.Lock()
		l.failed[id] = err
		l.mu.Unlock()
		return nil, err
	}

	l.mu.Lock()
	l.cache[id] = ref
	l.mu.Unlock()
	l.log.Debug().Str("reference", id).Int("steps", ref.StepCount()).Msg("reference loaded")
	return ref, nil
}

func (l *Library) cached(id string) (*Reference, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if ref, ok := l.cache[id]; ok {
		return ref, true, nil
	}
	if err, ok := l.failed[id]; ok {
		return nil, true, err
	}
	return nil, false, nil
}

// Preload parses every reference in the library. Files that fail to parse
// are remembered and logged; the count of usable references is returned.
func (l *Library) Preload(ctx context.Context) (int, error) {
	ids, err := l.List()
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		if _, err := l.Load(ctx, id); err != nil {
			l.log.Warn().Err(err).Str("reference", id).Msg("skipping reference")
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Preloaded returns a resolver answering from memory only. It is safe to
// call from the hub loop; references that were never loaded are not found.
func (l *Library) Preloaded() core.ReferenceResolver {
	return cachedResolver{l}
}

type cachedResolver struct {
	l *Library
}

func (c cachedResolver) StepCount(_ context.Context, id string) (int, error) {
	if !validID.MatchString(id) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	ref, ok, err := c.l.cached(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return 0, err
	}
	return ref.StepCount(), nil
}

// StepCount resolves the number of steps of a reference for guide sessions.
func (l *Library) StepCount(ctx context.Context, id string) (int, error) {
	ref, err := l.Load(ctx, id)
	if err != nil {
		return 0, err
	}
	return ref.StepCount(), nil
}

// List returns the ids of all references in the library.
func (l *Library) List() ([]string, error) {
	matches, err := fs.Glob(l.fsys, "*.svg")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), ".svg")
		if validID.MatchString(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
