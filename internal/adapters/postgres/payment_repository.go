package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
)

// PaymentRepository implements ports.PaymentRepository with hand-written
// pgx queries
type PaymentRepository struct{}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

const paymentColumns = `id, invoice_number, user_id, amount, currency, gateway,
	status, purpose, metadata, webhook_received, last_webhook_payload,
	external_tx_id, is_test, completed_at, created_at, updated_at`

// Create inserts a pending payment. The invoice number is taken from the
// payments_invoice_seq sequence inside the insert, so it is assigned exactly
// once and is never reused.
func (r *PaymentRepository) Create(ctx context.Context, db ports.DBTX, payment *domain.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.Status == "" {
		payment.Status = domain.StatusPending
	}

	metadataBytes, err := marshalMetadata(payment.Metadata)
	if err != nil {
		return err
	}

	amount, err := decimalToNumeric(payment.Amount)
	if err != nil {
		return fmt.Errorf("convert amount: %w", err)
	}

	row := db.QueryRow(ctx, `
		INSERT INTO payments (
			id, invoice_number, user_id, amount, currency, gateway,
			status, purpose, metadata, is_test
		) VALUES ($1, nextval('payments_invoice_seq'), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING invoice_number, created_at, updated_at`,
		payment.ID, payment.UserID, amount, payment.Currency,
		string(payment.Gateway), string(payment.Status), string(payment.Purpose),
		metadataBytes, payment.IsTest,
	)

	if err := row.Scan(&payment.InvoiceNumber, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

// GetByInvoice retrieves a payment by its invoice number
func (r *PaymentRepository) GetByInvoice(ctx context.Context, db ports.DBTX, invoiceNumber int64) (*domain.Payment, error) {
	row := db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_number = $1`,
		invoiceNumber,
	)
	return r.scanPayment(row)
}

// GetByInvoiceForUpdate retrieves a payment by invoice number holding a row
// lock for the duration of the surrounding transaction. Concurrent settle
// calls for the same invoice serialize here.
func (r *PaymentRepository) GetByInvoiceForUpdate(ctx context.Context, tx ports.DBTX, invoiceNumber int64) (*domain.Payment, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_number = $1 FOR UPDATE`,
		invoiceNumber,
	)
	return r.scanPayment(row)
}

// GetByID retrieves a payment by its internal id
func (r *PaymentRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Payment, error) {
	row := db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`,
		id,
	)
	return r.scanPayment(row)
}

// Complete marks the payment completed and records the webhook that settled it
func (r *PaymentRepository) Complete(ctx context.Context, tx ports.DBTX, id, externalTxID, rawPayload string, completedAt time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = $2, external_tx_id = COALESCE(NULLIF($3, ''), external_tx_id),
		    last_webhook_payload = $4, webhook_received = TRUE,
		    completed_at = $5, updated_at = now()
		WHERE id = $1`,
		id, string(domain.StatusCompleted), externalTxID, rawPayload, completedAt,
	)
	if err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound.WithDetail("payment_id", id)
	}
	return nil
}

// SetStatus transitions the payment to a non-completed status
func (r *PaymentRepository) SetStatus(ctx context.Context, tx ports.DBTX, id string, status domain.PaymentStatus, rawPayload string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = $2,
		    last_webhook_payload = COALESCE(NULLIF($3, ''), last_webhook_payload),
		    webhook_received = webhook_received OR $3 <> '',
		    updated_at = now()
		WHERE id = $1`,
		id, string(status), rawPayload,
	)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound.WithDetail("payment_id", id)
	}
	return nil
}

// FlagForReconciliation stores a reconciliation note in the payment metadata.
// The status is deliberately left untouched: the payment stays non-terminal
// until an operator resolves the discrepancy.
func (r *PaymentRepository) FlagForReconciliation(ctx context.Context, db ports.DBTX, id, note, rawPayload string) error {
	tag, err := db.Exec(ctx, `
		UPDATE payments
		SET metadata = metadata || jsonb_build_object($2::text, $3::text),
		    last_webhook_payload = COALESCE(NULLIF($4, ''), last_webhook_payload),
		    webhook_received = TRUE,
		    updated_at = now()
		WHERE id = $1`,
		id, domain.MetadataReconcile, note, rawPayload,
	)
	if err != nil {
		return fmt.Errorf("flag payment for reconciliation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound.WithDetail("payment_id", id)
	}
	return nil
}

// scanPayment converts one payments row into the domain model
func (r *PaymentRepository) scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p             domain.Payment
		amount        pgtype.Numeric
		gateway       string
		status        string
		purpose       string
		metadataBytes []byte
		lastPayload   pgtype.Text
		externalTxID  pgtype.Text
		completedAt   pgtype.Timestamptz
	)

	err := row.Scan(
		&p.ID, &p.InvoiceNumber, &p.UserID, &amount, &p.Currency, &gateway,
		&status, &purpose, &metadataBytes, &p.WebhookReceived, &lastPayload,
		&externalTxID, &p.IsTest, &completedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	p.Amount, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}

	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	p.Gateway = domain.Gateway(gateway)
	p.Status = domain.PaymentStatus(status)
	p.Purpose = domain.Purpose(purpose)
	p.LastWebhookPayload = lastPayload.String
	p.ExternalTxID = externalTxID.String
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}

	return &p, nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	bytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return bytes, nil
}
