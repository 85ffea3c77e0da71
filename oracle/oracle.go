// Package oracle contains the formatting engines which decide where edits go and what they contain.
package oracle

import (
	"context"

	"github.com/numtide/tsfmt/config"
	"github.com/numtide/tsfmt/edit"
)

// Oracle computes the edits which bring source into canonical style.
//
// The returned edits are offsets into source, pairwise non-overlapping, in no particular order.
// Implementations are constructed once per stage and must be reusable across unrelated sources.
type Oracle interface {
	ComputeEdits(ctx context.Context, name string, source []byte) ([]edit.Edit, error)
}

// Identifier is implemented by oracles which can describe themselves for cache invalidation purposes.
type Identifier interface {
	Identity() string
}

// Factory builds an Oracle bound to a set of resolved options.
type Factory func(opts *config.Options) (Oracle, error)

// Func adapts an ordinary function into an Oracle.
type Func func(ctx context.Context, name string, source []byte) ([]edit.Edit, error)

func (f Func) ComputeEdits(ctx context.Context, name string, source []byte) ([]edit.Edit, error) {
	return f(ctx, name, source)
}

// Fixed returns a Factory producing an oracle which always reports edits.
func Fixed(edits ...edit.Edit) Factory {
	return func(_ *config.Options) (Oracle, error) {
		return Func(func(context.Context, string, []byte) ([]edit.Edit, error) {
			return edits, nil
		}), nil
	}
}

// New selects the oracle described by cfg: an external command if one is configured, the built-in whitespace
// oracle otherwise.
func New(root string, cfg config.Oracle) Factory {
	if cfg.Command == "" {
		return func(opts *config.Options) (Oracle, error) {
			return NewWhitespace(opts)
		}
	}

	return func(opts *config.Options) (Oracle, error) {
		return NewCommand(root, cfg, opts)
	}
}

// Identity returns a description of o suitable for cache invalidation.
func Identity(o Oracle) string {
	if id, ok := o.(Identifier); ok {
		return id.Identity()
	}

	return ""
}
