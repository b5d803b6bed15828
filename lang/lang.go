// Package lang carries the request language through context and holds the
// localized copy of the upgrade and sign-in prompts.
package lang

import "context"

// Default is used when no supported language could be resolved.
const Default = "en"

type ctxKey struct{}

// WithLanguage attaches a request language to ctx.
func WithLanguage(ctx context.Context, language string) context.Context {
	return context.WithValue(ctx, ctxKey{}, language)
}

// FromContext reads the request language from ctx, or Default.
func FromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKey{}).(string); ok && s != "" {
		return s
	}
	return Default
}
