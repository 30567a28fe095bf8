package services

import (
	"context"
	"errors"
	"sync"

	"unite-tickets/internal/status"
	"unite-tickets/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// PurchaseStore is the persistence surface reconciliation runs against.
type PurchaseStore interface {
	// FindByReference returns the purchase with the given merchant
	// reference, or status.ErrPurchaseNotFound.
	FindByReference(ctx context.Context, reference string) (*models.TicketPurchase, error)

	// ApplyReconcile transitions a pending purchase to the terminal status
	// in upd. A purchase already in a terminal status is left untouched and
	// status.ErrAlreadyReconciled is returned.
	ApplyReconcile(ctx context.Context, reference string, upd models.ReconcileUpdate) (*models.TicketPurchase, error)

	// CreatePurchase persists a new pending purchase and returns it with
	// its assigned record id.
	CreatePurchase(ctx context.Context, p *models.TicketPurchase) (*models.TicketPurchase, error)

	// FindTicketType returns a ticket type by id or name.
	FindTicketType(ctx context.Context, id string) (*models.TicketType, error)
}

// recordStore is the PocketBase-backed PurchaseStore.
type recordStore struct {
	app core.App

	// mu serializes the read-then-write of ApplyReconcile so concurrent
	// IPN deliveries for the same purchase cannot both pass the pending
	// check.
	mu sync.Mutex
}

func NewPurchaseStore(app core.App) PurchaseStore {
	return &recordStore{app: app}
}

func (s *recordStore) FindByReference(ctx context.Context, reference string) (*models.TicketPurchase, error) {
	record, err := s.findRecord(reference)
	if err != nil {
		return nil, err
	}
	return recordToPurchase(record), nil
}

func (s *recordStore) ApplyReconcile(ctx context.Context, reference string, upd models.ReconcileUpdate) (*models.TicketPurchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.findRecord(reference)
	if err != nil {
		return nil, err
	}

	purchase := recordToPurchase(record)
	if !purchase.CanTransition(upd.PaymentStatus) {
		return purchase, status.ErrAlreadyReconciled
	}

	record.Set("payment_status", upd.PaymentStatus)
	record.Set("payment_date", upd.PaymentDate)
	record.Set("transaction_id", upd.TransactionID)
	if upd.PaymentMethod != "" {
		record.Set("payment_method", upd.PaymentMethod)
	}
	if upd.PaymentAccount != "" {
		record.Set("payment_account", upd.PaymentAccount)
	}
	if upd.ConfirmationCode != "" {
		record.Set("confirmation_code", upd.ConfirmationCode)
	}

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, err
	}

	return recordToPurchase(record), nil
}

func (s *recordStore) CreatePurchase(ctx context.Context, p *models.TicketPurchase) (*models.TicketPurchase, error) {
	collection, err := s.app.FindCollectionByNameOrId("ticket_purchases")
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(collection)
	record.Set("reference_number", p.ReferenceNumber)
	record.Set("ticket_type", p.TicketType)
	record.Set("quantity", p.Quantity)
	record.Set("total_amount", p.TotalAmount.InexactFloat64())
	record.Set("currency", p.Currency)
	record.Set("payment_status", models.PaymentStatusPending)
	record.Set("buyer_name", p.BuyerName)
	record.Set("buyer_email", p.BuyerEmail)
	record.Set("buyer_phone", p.BuyerPhone)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, err
	}

	return recordToPurchase(record), nil
}

func (s *recordStore) FindTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"ticket_types",
		"id = {:id} || name = {:id}",
		dbx.Params{"id": id},
	)
	if err != nil {
		return nil, status.ErrPurchaseNotFound
	}

	return &models.TicketType{
		ID:          record.Id,
		Name:        record.GetString("name"),
		Description: record.GetString("description"),
		Price:       decimal.NewFromFloat(record.GetFloat("price")),
		Currency:    record.GetString("currency"),
		MaxPerOrder: record.GetInt("max_per_order"),
		Available:   record.GetBool("available"),
	}, nil
}

func (s *recordStore) findRecord(reference string) (*core.Record, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"ticket_purchases",
		"reference_number = {:ref}",
		dbx.Params{"ref": reference},
	)
	if err != nil {
		return nil, status.ErrPurchaseNotFound
	}
	if record == nil {
		return nil, status.ErrPurchaseNotFound
	}
	return record, nil
}

func recordToPurchase(record *core.Record) *models.TicketPurchase {
	p := &models.TicketPurchase{
		ID:               record.Id,
		ReferenceNumber:  record.GetString("reference_number"),
		TicketType:       record.GetString("ticket_type"),
		Quantity:         record.GetInt("quantity"),
		TotalAmount:      decimal.NewFromFloat(record.GetFloat("total_amount")),
		Currency:         record.GetString("currency"),
		PaymentStatus:    record.GetString("payment_status"),
		PaymentMethod:    record.GetString("payment_method"),
		TransactionID:    record.GetString("transaction_id"),
		PaymentAccount:   record.GetString("payment_account"),
		ConfirmationCode: record.GetString("confirmation_code"),
		BuyerName:        record.GetString("buyer_name"),
		BuyerEmail:       record.GetString("buyer_email"),
		BuyerPhone:       record.GetString("buyer_phone"),
		Created:          record.GetDateTime("created").Time(),
		Updated:          record.GetDateTime("updated").Time(),
	}

	if d := record.GetDateTime("payment_date"); !d.IsZero() {
		t := d.Time()
		p.PaymentDate = &t
	}

	return p
}

// IsNotFound reports whether err is the store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, status.ErrPurchaseNotFound)
}
