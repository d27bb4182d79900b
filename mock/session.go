package mock

import (
	"context"

	"github.com/mkrol/marginalia"
)

var _ marginalia.Selector = (*Selector)(nil)

type Selector struct {
	SelectFn func(ctx context.Context, items []marginalia.SelectItem, opts marginalia.SelectOptions) (*marginalia.SelectionResult, error)
}

func (m *Selector) Select(ctx context.Context, items []marginalia.SelectItem, opts marginalia.SelectOptions) (*marginalia.SelectionResult, error) {
	return m.SelectFn(ctx, items, opts)
}
