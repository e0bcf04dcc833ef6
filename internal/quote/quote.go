// Package quote looks up current stock prices from an external provider.
package quote

import (
	"context"
	"errors"
	"strings"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
)

var (
	ErrNotFound    = errors.New("quote: symbol not found")
	ErrUnavailable = errors.New("quote: provider unavailable")
)

// Lookup returns the current quote for a symbol, or ErrNotFound when the
// provider does not know it. Any other error is a provider failure.
type Lookup interface {
	Lookup(ctx context.Context, symbol string) (*models.Quote, error)
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(ctx context.Context, symbol string) (*models.Quote, error)

func (f LookupFunc) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	return f(ctx, symbol)
}

// Normalize returns the canonical form of a ticker symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
