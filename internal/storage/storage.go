package storage

import (
	"context"
	"errors"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places kept for share prices and cash.
const PriceScale = 4

var (
	ErrUserExists        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Storage is the persistent store of users and the transaction ledger.
//
// Buy must lock the user's cash, check it covers shares*price, decrement it
// and append the ledger row as a single all-or-nothing step. The price is
// rounded to PriceScale first so the debit matches the recorded price.
type Storage interface {
	SaveUser(ctx context.Context, username string, passHash []byte, cash decimal.Decimal) (int64, error)
	UserByName(ctx context.Context, username string) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, passHash []byte) error
	Holdings(ctx context.Context, userID int64) ([]models.Holding, error)
	Transactions(ctx context.Context, userID int64) ([]models.Transaction, error)
	Buy(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) (*models.Transaction, error)
}
