package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one append-only ledger row. Exactly one row exists per
// payment that ever reaches completed; rows are never updated or deleted.
type Transaction struct {
	CreatedAt     time.Time       `json:"created_at"`
	ID            string          `json:"id"`
	PaymentID     string          `json:"payment_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// Balance is the user account record mutated only by the settlement engine
type Balance struct {
	UpdatedAt time.Time       `json:"updated_at"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
}
