package ports

import (
	"context"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerRepository mutates user balances and appends transaction rows.
// Credit and CreateTransaction are only ever called by the settlement engine
// inside one database transaction.
type LedgerRepository interface {
	// Credit increments the user balance and returns the before/after
	// snapshot taken under the row lock
	Credit(ctx context.Context, tx DBTX, userID string, amount decimal.Decimal) (before, after decimal.Decimal, err error)

	// CreateTransaction appends one ledger row; the unique index on
	// payment_id rejects a second row for the same payment
	CreateTransaction(ctx context.Context, tx DBTX, transaction *domain.Transaction) error

	// GetBalance reads the current balance, zero for unknown users
	GetBalance(ctx context.Context, db DBTX, userID string) (decimal.Decimal, error)

	// GetTransactionByPaymentID loads the ledger row for a payment, if any
	GetTransactionByPaymentID(ctx context.Context, db DBTX, paymentID string) (*domain.Transaction, error)
}
