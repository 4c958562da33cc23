package ports

import (
	"context"
	"time"

	"github.com/kmalyshev/topup-service/internal/domain"
)

// PaymentRepository persists payment state-machine instances
type PaymentRepository interface {
	// Create inserts a pending payment and assigns its id and invoice number.
	// The invoice number comes from a database sequence and is assigned
	// exactly once.
	Create(ctx context.Context, db DBTX, payment *domain.Payment) error

	// GetByInvoice loads a payment by its externally visible invoice number
	GetByInvoice(ctx context.Context, db DBTX, invoiceNumber int64) (*domain.Payment, error)

	// GetByInvoiceForUpdate loads a payment by invoice number with a row lock;
	// must be called inside a transaction
	GetByInvoiceForUpdate(ctx context.Context, tx DBTX, invoiceNumber int64) (*domain.Payment, error)

	// GetByID loads a payment by its internal id
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Payment, error)

	// Complete marks the payment completed, stamps completed_at and records
	// the raw webhook payload
	Complete(ctx context.Context, tx DBTX, id, externalTxID, rawPayload string, completedAt time.Time) error

	// SetStatus moves the payment to a non-completed status (failed, expired,
	// ...) and records the raw webhook payload when present
	SetStatus(ctx context.Context, tx DBTX, id string, status domain.PaymentStatus, rawPayload string) error

	// FlagForReconciliation stores a reconciliation note in the payment
	// metadata without transitioning its status
	FlagForReconciliation(ctx context.Context, db DBTX, id, note, rawPayload string) error
}
