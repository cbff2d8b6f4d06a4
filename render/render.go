// Package render turns graph snapshots into image artifacts via Graphviz.
package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-graphviz"

	"github.com/jonike/transwarp"
	"github.com/jonike/transwarp/internal/cache"
)

// Renderer renders graph snapshots, optionally caching artifacts keyed by the
// hash of their DOT text.
type Renderer struct {
	cache cache.Cache
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithMemoryCache reuses previously rendered artifacts for unchanged graphs,
// holding them in memory for ttl.
func WithMemoryCache(ttl time.Duration) Option {
	return func(r *Renderer) {
		r.cache = cache.NewInMemoryCache(ttl)
	}
}

// WithFileCache reuses previously rendered artifacts across process restarts,
// persisting them to the file at path. logger may be nil.
func WithFileCache(ttl time.Duration, path string, logger *log.Logger) Option {
	return func(r *Renderer) {
		r.cache = cache.NewFileCache(ttl, path, logger)
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SVG renders the snapshot to a complete SVG document.
func (r *Renderer) SVG(ctx context.Context, g *transwarp.Graph) ([]byte, error) {
	dot := g.DOT()
	key := hashKey("svg", dot)

	if r.cache != nil {
		if artifact, err := r.cache.Get(ctx, key); err == nil {
			return artifact, nil
		}
	}

	svg, err := renderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, svg); err != nil {
			return nil, err
		}
	}
	return svg, nil
}

// renderSVG runs the DOT text through Graphviz.
func renderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	parsed, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer parsed.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, parsed, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// hashKey generates a cache key by hashing the artifact source.
// The key format is: prefix:hash(source).
func hashKey(prefix, source string) string {
	hash := sha256.Sum256([]byte(source))
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}
