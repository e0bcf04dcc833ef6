// Package memory is a process-local Storage used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/IlyasAtabaev731/finance/internal/storage"
	"github.com/shopspring/decimal"
)

type Storage struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	byName map[string]int64
	ledger []models.Transaction
	nextID int64
	nextTx int64
	now    func() time.Time
}

type Option func(*Storage)

// WithClock overrides the timestamp source for new ledger rows.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

func New(opts ...Option) *Storage {
	s := &Storage{
		users:  make(map[int64]*models.User),
		byName: make(map[string]int64),
		nextID: 1,
		nextTx: 1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) SaveUser(_ context.Context, username string, passHash []byte, cash decimal.Decimal) (int64, error) {
	const op = "storage.memory.SaveUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}

	id := s.nextID
	s.nextID++
	s.users[id] = &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: string(passHash),
		Cash:         cash,
		CreatedAt:    s.now(),
	}
	s.byName[username] = id

	return id, nil
}

func (s *Storage) UserByName(_ context.Context, username string) (*models.User, error) {
	const op = "storage.memory.UserByName"

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Storage) UserByID(_ context.Context, id int64) (*models.User, error) {
	const op = "storage.memory.UserByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Storage) UpdatePasswordHash(_ context.Context, id int64, passHash []byte) error {
	const op = "storage.memory.UpdatePasswordHash"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	u.PasswordHash = string(passHash)
	return nil
}

func (s *Storage) Holdings(_ context.Context, userID int64) ([]models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[string]int64)
	for _, t := range s.ledger {
		if t.UserID == userID {
			sums[t.Symbol] += t.Shares
		}
	}

	var holdings []models.Holding
	for symbol, shares := range sums {
		if shares > 0 {
			holdings = append(holdings, models.Holding{Symbol: symbol, Shares: shares})
		}
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})

	return holdings, nil
}

func (s *Storage) Transactions(_ context.Context, userID int64) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var transactions []models.Transaction
	for _, t := range s.ledger {
		if t.UserID == userID {
			transactions = append(transactions, t)
		}
	}
	// ledger is in insertion order, so a stable sort keeps it for equal timestamps
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Timestamp.After(transactions[j].Timestamp)
	})

	return transactions, nil
}

func (s *Storage) Buy(_ context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) (*models.Transaction, error) {
	const op = "storage.memory.Buy"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	price = price.Round(storage.PriceScale)
	cost := price.Mul(decimal.NewFromInt(shares))
	if u.Cash.LessThan(cost) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrInsufficientFunds)
	}

	t := models.Transaction{
		ID:        s.nextTx,
		UserID:    userID,
		Symbol:    symbol,
		Shares:    shares,
		Price:     price,
		Timestamp: s.now(),
	}
	s.nextTx++

	u.Cash = u.Cash.Sub(cost)
	s.ledger = append(s.ledger, t)

	return &t, nil
}

// Append records a ledger row without touching cash. Used to seed fixtures such as sells.
func (s *Storage) Append(t models.Transaction) models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextTx
	s.nextTx++
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	s.ledger = append(s.ledger, t)
	return t
}
