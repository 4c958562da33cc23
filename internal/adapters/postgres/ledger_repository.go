package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// LedgerRepository implements ports.LedgerRepository
type LedgerRepository struct{}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

// Credit increments the user balance, creating the row on first credit.
// The before/after snapshot is taken under the row lock the upsert acquires,
// so concurrent credits for the same user serialize correctly.
func (r *LedgerRepository) Credit(ctx context.Context, tx ports.DBTX, userID string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	amountNumeric, err := decimalToNumeric(amount)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("convert amount: %w", err)
	}

	var beforeNumeric, afterNumeric pgtype.Numeric
	row := tx.QueryRow(ctx, `
		INSERT INTO user_balances (user_id, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET balance = user_balances.balance + EXCLUDED.balance, updated_at = now()
		RETURNING balance - $2, balance`,
		userID, amountNumeric,
	)
	if err := row.Scan(&beforeNumeric, &afterNumeric); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("credit balance: %w", err)
	}

	before, err := pgNumericToDecimal(beforeNumeric)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("convert balance before: %w", err)
	}
	after, err := pgNumericToDecimal(afterNumeric)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("convert balance after: %w", err)
	}

	return before, after, nil
}

// CreateTransaction appends one ledger row
func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx ports.DBTX, transaction *domain.Transaction) error {
	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}

	amount, err := decimalToNumeric(transaction.Amount)
	if err != nil {
		return fmt.Errorf("convert amount: %w", err)
	}
	before, err := decimalToNumeric(transaction.BalanceBefore)
	if err != nil {
		return fmt.Errorf("convert balance before: %w", err)
	}
	after, err := decimalToNumeric(transaction.BalanceAfter)
	if err != nil {
		return fmt.Errorf("convert balance after: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO transactions (id, payment_id, user_id, amount, balance_before, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		transaction.ID, transaction.PaymentID, transaction.UserID, amount, before, after,
	)
	if err := row.Scan(&transaction.CreatedAt); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

// GetBalance reads the current balance, zero for unknown users
func (r *LedgerRepository) GetBalance(ctx context.Context, db ports.DBTX, userID string) (decimal.Decimal, error) {
	var balanceNumeric pgtype.Numeric
	row := db.QueryRow(ctx, `SELECT balance FROM user_balances WHERE user_id = $1`, userID)
	err := row.Scan(&balanceNumeric)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return pgNumericToDecimal(balanceNumeric)
}

// GetTransactionByPaymentID loads the ledger row for a payment, nil when the
// payment never settled
func (r *LedgerRepository) GetTransactionByPaymentID(ctx context.Context, db ports.DBTX, paymentID string) (*domain.Transaction, error) {
	var (
		t      domain.Transaction
		amount pgtype.Numeric
		before pgtype.Numeric
		after  pgtype.Numeric
	)
	row := db.QueryRow(ctx, `
		SELECT id, payment_id, user_id, amount, balance_before, balance_after, created_at
		FROM transactions WHERE payment_id = $1`,
		paymentID,
	)
	err := row.Scan(&t.ID, &t.PaymentID, &t.UserID, &amount, &before, &after, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by payment id: %w", err)
	}

	if t.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}
	if t.BalanceBefore, err = pgNumericToDecimal(before); err != nil {
		return nil, fmt.Errorf("convert balance before: %w", err)
	}
	if t.BalanceAfter, err = pgNumericToDecimal(after); err != nil {
		return nil, fmt.Errorf("convert balance after: %w", err)
	}

	return &t, nil
}
