package quote

import (
	"context"
	"sync"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/shopspring/decimal"
)

// Static serves quotes from a fixed in-process table.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]models.Quote
}

func NewStatic() *Static {
	return &Static{quotes: make(map[string]models.Quote)}
}

// Set adds or replaces the quote for symbol.
func (s *Static) Set(symbol, name string, price decimal.Decimal) {
	symbol = Normalize(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = models.Quote{Name: name, Symbol: symbol, Price: price}
}

func (s *Static) Delete(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, Normalize(symbol))
}

func (s *Static) Lookup(_ context.Context, symbol string) (*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[Normalize(symbol)]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}
