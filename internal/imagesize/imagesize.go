// Package imagesize determines the natural dimensions of images referenced
// from built HTML pages, without decoding pixel data.
package imagesize

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrRemote is returned for images served from another host.
var ErrRemote = errors.New("remote image")

// Size is the natural size of an image in pixels.
type Size struct {
	Width  int
	Height int
}

// DecodeDataURI returns the size of an image embedded as a base64 data URI,
// as notebook outputs usually are.
func DecodeDataURI(uri string) (Size, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Size{}, fmt.Errorf("not a data URI")
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return Size{}, fmt.Errorf("malformed data URI")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return Size{}, fmt.Errorf("unsupported data URI encoding %q", meta)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return Size{}, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return decodeConfig(bytes.NewReader(raw))
}

// DecodeFile returns the size of the image file at path.
func DecodeFile(path string) (Size, error) {
	f, err := os.Open(path)
	if err != nil {
		return Size{}, err
	}
	defer func() { _ = f.Close() }()

	size, err := decodeConfig(f)
	if err != nil {
		return Size{}, fmt.Errorf("%s: %w", path, err)
	}
	return size, nil
}

func decodeConfig(r io.Reader) (Size, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return Size{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, nil
}

// Resolver looks up image sizes for pages of a site rooted at a directory.
// Sizes of files are cached by path. A Resolver is safe for concurrent use.
type Resolver struct {
	root string

	mu    sync.Mutex
	cache map[string]Size
}

// NewResolver creates a [Resolver] for the site at root.
func NewResolver(root string) *Resolver {
	return &Resolver{
		root:  filepath.Clean(root),
		cache: make(map[string]Size),
	}
}

// Lookup returns the size of the image src referenced from page, a path
// relative to the site root using forward slashes.
func (r *Resolver) Lookup(page, src string) (Size, error) {
	if strings.HasPrefix(src, "data:") {
		return DecodeDataURI(src)
	}

	u, err := url.Parse(src)
	if err != nil {
		return Size{}, fmt.Errorf("invalid image URL %q: %w", src, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return Size{}, fmt.Errorf("%s: %w", src, ErrRemote)
	}

	// joining onto "/" keeps ".." segments from leaving the site root
	rel := path.Join("/", u.Path)
	if !strings.HasPrefix(u.Path, "/") {
		rel = path.Join("/", path.Dir(page), u.Path)
	}
	file := filepath.Join(r.root, filepath.FromSlash(rel))

	r.mu.Lock()
	size, ok := r.cache[file]
	r.mu.Unlock()
	if ok {
		return size, nil
	}

	size, err = DecodeFile(file)
	if err != nil {
		return Size{}, err
	}

	r.mu.Lock()
	r.cache[file] = size
	r.mu.Unlock()
	return size, nil
}

// Forget drops cached sizes, e.g. after the site was rebuilt.
func (r *Resolver) Forget() {
	r.mu.Lock()
	clear(r.cache)
	r.mu.Unlock()
}
