// Package trading implements the portfolio, buy, history and account
// operations on top of the ledger store and the quote lookup.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/IlyasAtabaev731/finance/internal/lib/logger/sl"
	"github.com/IlyasAtabaev731/finance/internal/quote"
	"github.com/IlyasAtabaev731/finance/internal/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	logger       *slog.Logger
	storage      storage.Storage
	quotes       quote.Lookup
	startingCash decimal.Decimal
	hashCost     int
}

type Option func(*Service)

// WithHashCost sets the bcrypt cost used for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

func New(logger *slog.Logger, storage storage.Storage, quotes quote.Lookup, startingCash decimal.Decimal, opts ...Option) *Service {
	s := &Service{
		logger:       logger,
		storage:      storage,
		quotes:       quotes,
		startingCash: startingCash,
		hashCost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Portfolio values every positive holding at its current price. A holding
// whose quote cannot be looked up is left out of the result.
func (s *Service) Portfolio(ctx context.Context, userID int64) (*models.Portfolio, error) {
	const op = "trading.Portfolio"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	holdings, err := s.storage.Holdings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := &models.Portfolio{
		Positions:  make([]models.Position, 0, len(holdings)),
		Cash:       user.Cash,
		GrandTotal: user.Cash,
	}

	for _, h := range holdings {
		if h.Shares <= 0 {
			continue
		}

		q, err := s.quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			s.logger.Debug("omitting holding without quote",
				slog.String("op", op),
				slog.String("symbol", h.Symbol),
				sl.Err(err),
			)
			continue
		}

		value := q.Price.Mul(decimal.NewFromInt(h.Shares))
		p.Positions = append(p.Positions, models.Position{
			Symbol: h.Symbol,
			Name:   q.Name,
			Shares: h.Shares,
			Price:  q.Price,
			Value:  value,
		})
		p.GrandTotal = p.GrandTotal.Add(value)
	}

	return p, nil
}

func (s *Service) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if symbol == "" {
		return nil, validationError("must provide symbol")
	}

	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		s.logger.Debug("quote lookup failed", slog.String("symbol", symbol), sl.Err(err))
		return nil, newError(ErrInvalidSymbol, "invalid symbol")
	}

	return q, nil
}

// Buy charges shares × current price to the user's cash and appends the
// ledger row in one step.
func (s *Service) Buy(ctx context.Context, userID int64, symbol, sharesRaw string) (*models.Transaction, error) {
	const op = "trading.Buy"

	q, err := s.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	shares, ok := parseShares(sharesRaw)
	if !ok {
		return nil, &Error{Msg: "must provide a positive number of shares", Kind: ErrValidation, Cause: ErrInvalidShares}
	}

	t, err := s.storage.Buy(ctx, userID, q.Symbol, shares, q.Price)
	if errors.Is(err, storage.ErrInsufficientFunds) {
		return nil, newError(ErrInsufficientFunds, "can't afford")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("bought shares",
		slog.Int64("user_id", userID),
		slog.String("symbol", t.Symbol),
		slog.Int64("shares", t.Shares),
		slog.String("price", t.Price.String()),
	)

	return t, nil
}

// parseShares accepts only unsigned decimal digits denoting a value above zero.
func parseShares(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Service) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	const op = "trading.History"

	transactions, err := s.storage.Transactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return transactions, nil
}

func (s *Service) Register(ctx context.Context, username, password, confirmation string) (int64, error) {
	const op = "trading.Register"

	switch {
	case username == "":
		return 0, validationError("must provide username")
	case password == "":
		return 0, validationError("must provide password")
	case confirmation == "":
		return 0, validationError("must provide confirmation")
	case password != confirmation:
		return 0, validationError("passwords do not match")
	}

	_, err := s.storage.UserByName(ctx, username)
	if err == nil {
		return 0, newError(ErrDuplicateUsername, "username already exists")
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.storage.SaveUser(ctx, username, hash, s.startingCash)
	if errors.Is(err, storage.ErrUserExists) {
		return 0, newError(ErrDuplicateUsername, "username already exists")
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("registered user", slog.String("username", username), slog.Int64("user_id", id))

	return id, nil
}

// Authenticate reports ErrInvalidCredentials for both an unknown username and
// a wrong password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	const op = "trading.Authenticate"

	switch {
	case username == "":
		return nil, validationError("must provide username")
	case password == "":
		return nil, validationError("must provide password")
	}

	user, err := s.storage.UserByName(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, newError(ErrInvalidCredentials, "invalid username and/or password")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, newError(ErrInvalidCredentials, "invalid username and/or password")
	}

	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, current, newPassword, confirmation string) error {
	const op = "trading.ChangePassword"

	switch {
	case current == "":
		return validationError("must provide current password")
	case newPassword == "":
		return validationError("must provide new password")
	case confirmation == "":
		return validationError("must provide new password confirmation")
	case newPassword != confirmation:
		return validationError("new passwords do not match")
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return newError(ErrInvalidCredentials, "invalid current password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("changed password", slog.Int64("user_id", userID))

	return nil
}
