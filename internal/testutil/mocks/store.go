// Package mocks provides shared in-memory test doubles for the database and
// repository ports, so gateway and handler tests do not each redeclare them.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// StubDB satisfies ports.DBPort without a real database. WithTransaction
// serializes callers with a mutex, standing in for the row lock.
type StubDB struct {
	mu sync.Mutex
}

func (s *StubDB) GetDB() *pgxpool.Pool { return nil }

func (s *StubDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, nil)
}

// PaymentStore is an in-memory ports.PaymentRepository. Invoice numbers are
// assigned from a counter starting at 1000 like the database sequence.
type PaymentStore struct {
	mu          sync.Mutex
	byInvoice   map[int64]*domain.Payment
	nextInvoice int64

	// Lookups counts reads, so tests can assert a handler rejected a
	// request without touching storage
	Lookups int
}

// NewPaymentStore creates an empty in-memory payment store
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		byInvoice:   make(map[int64]*domain.Payment),
		nextInvoice: 1000,
	}
}

// Seed inserts a payment directly, assigning id and invoice number when unset
func (s *PaymentStore) Seed(payment *domain.Payment) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.InvoiceNumber == 0 {
		payment.InvoiceNumber = s.nextInvoice
		s.nextInvoice++
	}
	s.byInvoice[payment.InvoiceNumber] = payment
	return payment
}

func (s *PaymentStore) Create(ctx context.Context, db ports.DBTX, payment *domain.Payment) error {
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	s.Seed(payment)
	return nil
}

func (s *PaymentStore) GetByInvoice(ctx context.Context, db ports.DBTX, invoiceNumber int64) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lookups++
	payment, ok := s.byInvoice[invoiceNumber]
	if !ok {
		return nil, domain.ErrPaymentNotFound.WithDetail("invoice_number", invoiceNumber)
	}
	copied := *payment
	return &copied, nil
}

func (s *PaymentStore) GetByInvoiceForUpdate(ctx context.Context, tx ports.DBTX, invoiceNumber int64) (*domain.Payment, error) {
	return s.GetByInvoice(ctx, tx, invoiceNumber)
}

func (s *PaymentStore) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, payment := range s.byInvoice {
		if payment.ID == id {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, domain.ErrPaymentNotFound.WithDetail("id", id)
}

func (s *PaymentStore) Complete(ctx context.Context, tx ports.DBTX, id, externalTxID, rawPayload string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment := s.findLocked(id)
	if payment == nil {
		return domain.ErrPaymentNotFound.WithDetail("id", id)
	}
	payment.Status = domain.StatusCompleted
	payment.ExternalTxID = externalTxID
	payment.LastWebhookPayload = rawPayload
	payment.WebhookReceived = true
	payment.CompletedAt = &completedAt
	return nil
}

func (s *PaymentStore) SetStatus(ctx context.Context, tx ports.DBTX, id string, status domain.PaymentStatus, rawPayload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment := s.findLocked(id)
	if payment == nil {
		return domain.ErrPaymentNotFound.WithDetail("id", id)
	}
	payment.Status = status
	if rawPayload != "" {
		payment.LastWebhookPayload = rawPayload
		payment.WebhookReceived = true
	}
	return nil
}

func (s *PaymentStore) FlagForReconciliation(ctx context.Context, db ports.DBTX, id, note, rawPayload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment := s.findLocked(id)
	if payment == nil {
		return domain.ErrPaymentNotFound.WithDetail("id", id)
	}
	if payment.Metadata == nil {
		payment.Metadata = make(map[string]string)
	}
	payment.Metadata[domain.MetadataReconcile] = note
	payment.LastWebhookPayload = rawPayload
	return nil
}

func (s *PaymentStore) findLocked(id string) *domain.Payment {
	for _, payment := range s.byInvoice {
		if payment.ID == id {
			return payment
		}
	}
	return nil
}

// LedgerStore is an in-memory ports.LedgerRepository
type LedgerStore struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal

	Rows []*domain.Transaction
}

// NewLedgerStore creates an empty in-memory ledger
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{balances: make(map[string]decimal.Decimal)}
}

func (l *LedgerStore) Credit(ctx context.Context, tx ports.DBTX, userID string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	before := l.balances[userID]
	after := before.Add(amount)
	l.balances[userID] = after
	return before, after, nil
}

func (l *LedgerStore) CreateTransaction(ctx context.Context, tx ports.DBTX, transaction *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	transaction.CreatedAt = time.Now().UTC()
	l.Rows = append(l.Rows, transaction)
	return nil
}

func (l *LedgerStore) GetBalance(ctx context.Context, db ports.DBTX, userID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *LedgerStore) GetTransactionByPaymentID(ctx context.Context, db ports.DBTX, paymentID string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, row := range l.Rows {
		if row.PaymentID == paymentID {
			return row, nil
		}
	}
	return nil, nil
}
