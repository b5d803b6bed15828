// Package generate runs gated generations against pluggable providers and
// tracks their progress. The providers themselves (text, image and voice
// APIs) live outside this module and are registered per feature.
package generate

import (
	"context"
	"errors"
	"sync"

	"github.com/PaulFidika/demogate/features"
)

// ErrNoGenerator is returned when no provider is registered for a feature.
var ErrNoGenerator = errors.New("no generator registered for feature")

// Request is the input handed to a Generator.
type Request struct {
	Feature  string
	DeviceID string
	Input    map[string]any
	// Limits is set for demo-tier features and must be honored by the provider
	// (duration, resolution, watermark).
	Limits *features.DemoLimits
}

// Result is a provider's output.
type Result struct {
	Output      map[string]any `json:"output"`
	Watermarked bool           `json:"watermarked"`
}

// Generator produces one artifact.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Generate(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Registry maps feature ids to generators.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Generator
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Generator)}
}

// Register binds g to feature, replacing any previous binding.
func (r *Registry) Register(feature string, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[feature] = g
}

// Get returns the generator for feature.
func (r *Registry) Get(feature string) (Generator, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byID[feature]
	return g, ok
}
