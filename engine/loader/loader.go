package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// LoaderBackendType identifies the splat file format backend to use.
type LoaderBackendType int

const (
	// BackendTypePLY selects the 3D Gaussian Splatting PLY backend.
	BackendTypePLY LoaderBackendType = iota
)

// ErrUnsupportedFormat is returned for paths whose extension no backend accepts.
var ErrUnsupportedFormat = errors.New("unsupported splat format")

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	cache map[string]scene.RawAttributes

	// inflight collapses concurrent loads of the same path into one decode.
	inflight singleflight.Group

	backend loaderBackend

	progress  io.Writer
	maxDegree int
}

// Loader loads splat files into raw attribute batches and caches them by path.
// The cached batches are shared; callers adjust Transform and PrimID on their
// own copy of the struct and must not modify the slices.
type Loader interface {
	// Load decodes a splat file and caches the result.
	// If the file is already cached (by path), the cached batch is returned.
	// Concurrent loads of one path decode it once.
	//
	// Parameters:
	//   - path: the file path to the splat file
	//
	// Returns:
	//   - scene.RawAttributes: the decoded batch
	//   - error: ErrUnsupportedFormat for unknown extensions, or the wrapped decode error
	Load(path string) (scene.RawAttributes, error)

	// LoadReader decodes a stream and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key for the batch
	//   - r: the reader providing file data
	//
	// Returns:
	//   - scene.RawAttributes: the decoded batch
	//   - error: error if decoding fails
	LoadReader(name string, r io.Reader) (scene.RawAttributes, error)

	// Save writes a batch to path in the format selected by its extension.
	//
	// Parameters:
	//   - path: destination file
	//   - a: the batch to write
	//
	// Returns:
	//   - error: ErrUnsupportedFormat for unknown extensions, or the write error
	Save(path string, a scene.RawAttributes) error

	// Get retrieves a cached batch by name.
	Get(name string) (scene.RawAttributes, bool)

	// Splats returns a copy of the cache keyed by name.
	//
	// Returns:
	//   - map[string]scene.RawAttributes: all cached batches
	Splats() map[string]scene.RawAttributes

	// Evict drops a cached batch so the next Load reads the file again.
	Evict(name string)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypePLY)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		cache:     make(map[string]scene.RawAttributes),
		maxDegree: splat.MaxDegree,
	}

	for _, option := range options {
		option(l)
	}

	switch backendType {
	case BackendTypePLY:
		l.backend = newPLYLoaderBackend(l.maxDegree)
	}
	return l
}

func (l *loader) Load(path string) (scene.RawAttributes, error) {
	if cached, ok := l.Get(path); ok {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return scene.RawAttributes{}, err
	}

	v, err, shared := l.inflight.Do(path, func() (any, error) {
		a, err := l.loadFile(backend, path)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[path] = a
		l.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return scene.RawAttributes{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if shared {
		common.Logger().Debug("joined in-flight load", "path", path)
	}
	return v.(scene.RawAttributes), nil
}

func (l *loader) loadFile(backend loaderBackend, path string) (scene.RawAttributes, error) {
	f, err := os.Open(path)
	if err != nil {
		return scene.RawAttributes{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if l.progress != nil {
		size := int64(-1)
		if st, err := f.Stat(); err == nil {
			size = st.Size()
		}
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(l.progress),
			progressbar.OptionSetDescription(filepath.Base(path)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Close()
		r = io.TeeReader(f, bar)
	}

	start := time.Now()
	a, err := backend.Decode(r)
	if err != nil {
		return scene.RawAttributes{}, err
	}
	common.Logger().Info("loaded splats",
		"path", path,
		"splats", a.Len(),
		"degree", a.Degree,
		"elapsed", time.Since(start),
	)
	return a, nil
}

func (l *loader) LoadReader(name string, r io.Reader) (scene.RawAttributes, error) {
	if cached, ok := l.Get(name); ok {
		return cached, nil
	}

	a, err := l.backend.Decode(r)
	if err != nil {
		return scene.RawAttributes{}, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}

	l.mu.Lock()
	l.cache[name] = a
	l.mu.Unlock()
	return a, nil
}

func (l *loader) Save(path string, a scene.RawAttributes) (err error) {
	backend, err := l.resolveBackend(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := backend.Encode(f, a); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (l *loader) Get(name string) (scene.RawAttributes, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.cache[name]
	return a, ok
}

func (l *loader) Splats() map[string]scene.RawAttributes {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]scene.RawAttributes, len(l.cache))
	for k, v := range l.cache {
		result[k] = v
	}
	return result
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, name)
}

// resolveBackend selects the loader backend based on the file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if l.backend != nil && slices.Contains(l.backend.Extensions(), ext) {
		return l.backend, nil
	}
	return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
}
