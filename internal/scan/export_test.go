package scan

import (
	"context"

	"github.com/unbound-force/orderflake/internal/syntax"
)

// WithLoad replaces the file loader used by Scan.
func WithLoad(opts Options, fn func(ctx context.Context, path, rel string) (*syntax.File, error)) Options {
	opts.load = fn
	return opts
}
