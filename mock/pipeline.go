// Package mock provides test doubles for audit interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/audit"
)

// Interface compliance checks.
var (
	_ audit.Pipeline    = (*Pipeline)(nil)
	_ audit.TokenSource = (*TokenSource)(nil)
)

// Pipeline is a test double for audit.Pipeline.
// Set StreamFn before calling Stream.
type Pipeline struct {
	StreamFn func(ctx context.Context, req audit.Request) (audit.Stream, error)
}

// Stream delegates to StreamFn.
func (p *Pipeline) Stream(ctx context.Context, req audit.Request) (audit.Stream, error) {
	return p.StreamFn(ctx, req)
}

// TokenSource is a test double for audit.TokenSource.
type TokenSource struct {
	TokenFn func(ctx context.Context) (string, error)
}

// Token delegates to TokenFn.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	return t.TokenFn(ctx)
}
