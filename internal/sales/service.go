package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-backend/internal/audit"
	"pos-backend/internal/events"
	"pos-backend/internal/fulfillment"
	"pos-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidCart     = errors.New("invalid cart")
	ErrPaymentMismatch = errors.New("payment does not match sale total")
	ErrNotFound        = errors.New("sale not found")
)

type CartLine struct {
	ItemID    uint
	Kind      models.ItemKind
	RecipeID  *uint
	Quantity  int64
	UnitPrice decimal.Decimal
}

type Payment struct {
	Method     models.PaymentMethod
	AmountCash decimal.Decimal
	AmountCard decimal.Decimal
}

type Cart struct {
	Lines   []CartLine
	Payment Payment
	Notes   string
}

// Service records sales. A sale and every deduction it causes commit together
// or not at all.
type Service struct {
	db        *gorm.DB
	store     *fulfillment.GormStore
	engine    *fulfillment.Engine
	publisher events.Publisher
	log       *zap.Logger
}

func NewService(db *gorm.DB, store *fulfillment.GormStore, engine *fulfillment.Engine, publisher events.Publisher, log *zap.Logger) *Service {
	return &Service{db: db, store: store, engine: engine, publisher: publisher, log: log}
}

func (s *Service) Checkout(ctx context.Context, companyID, userID uint, cart Cart) (*models.Sale, error) {
	if len(cart.Lines) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one line", ErrInvalidCart)
	}

	total := decimal.Zero
	lines := make([]fulfillment.LineItem, len(cart.Lines))
	items := make([]models.SaleItem, len(cart.Lines))
	for i, l := range cart.Lines {
		if l.Quantity <= 0 {
			return nil, &fulfillment.LineError{
				Index:  i,
				ItemID: l.ItemID,
				Err:    fmt.Errorf("%w: quantity must be positive, got %d", fulfillment.ErrInvalidLineItem, l.Quantity),
			}
		}
		if l.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %d has a negative price", ErrInvalidCart, i)
		}
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
		lines[i] = fulfillment.LineItem{ItemID: l.ItemID, Kind: l.Kind, RecipeID: l.RecipeID, Quantity: l.Quantity}
		items[i] = models.SaleItem{ItemID: l.ItemID, Kind: l.Kind, RecipeID: l.RecipeID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}

	payment, err := settle(cart.Payment, total)
	if err != nil {
		return nil, err
	}

	sale := models.Sale{
		CompanyID:  companyID,
		Reference:  uuid.New(),
		UserID:     userID,
		Method:     payment.Method,
		Total:      total,
		AmountCash: payment.AmountCash,
		AmountCard: payment.AmountCard,
		Notes:      cart.Notes,
		Items:      items,
	}

	var records []fulfillment.DecrementRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// each line item becomes a savepoint of this transaction
		recs, err := s.engine.WithStore(s.store.WithDB(tx)).Fulfill(ctx, companyID, lines)
		if err != nil {
			return err
		}
		records = recs
		sale.Decrements = decrementRows(recs)

		if err := tx.Create(&sale).Error; err != nil {
			return fmt.Errorf("save sale: %w", err)
		}

		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   companyID,
			UserID:      userID,
			EntityType:  "sale",
			EntityID:    sale.ID,
			Action:      models.AuditActionSale,
			Description: fmt.Sprintf("Sale %s: %d lines, total %s (%s)", sale.Reference, len(sale.Items), sale.Total.StringFixed(2), sale.Method),
			After:       records,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sale recorded",
		zap.String("reference", sale.Reference.String()),
		zap.Uint("company_id", companyID),
		zap.Uint("user_id", userID),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.Int("decrements", len(records)),
	)

	// the sale stands even if the event is lost
	if err := s.publisher.PublishSaleCompleted(ctx, events.SaleCompleted{
		Reference:  sale.Reference,
		CompanyID:  companyID,
		UserID:     userID,
		Method:     string(sale.Method),
		Total:      sale.Total,
		AmountCash: sale.AmountCash,
		AmountCard: sale.AmountCard,
		Decrements: records,
		OccurredAt: sale.CreatedAt,
	}); err != nil {
		s.log.Warn("sale event not published", zap.String("reference", sale.Reference.String()), zap.Error(err))
	}

	return &sale, nil
}

// settle fills in the cash/card split for single-method payments and checks
// that a mixed payment adds up to the total.
func settle(p Payment, total decimal.Decimal) (Payment, error) {
	switch p.Method {
	case models.PaymentCash:
		return Payment{Method: p.Method, AmountCash: total, AmountCard: decimal.Zero}, nil
	case models.PaymentCard:
		return Payment{Method: p.Method, AmountCash: decimal.Zero, AmountCard: total}, nil
	case models.PaymentMixed:
		if p.AmountCash.IsNegative() || p.AmountCard.IsNegative() {
			return Payment{}, fmt.Errorf("%w: amounts must not be negative", ErrPaymentMismatch)
		}
		if sum := p.AmountCash.Add(p.AmountCard); !sum.Equal(total) {
			return Payment{}, fmt.Errorf("%w: cash %s + card %s != %s", ErrPaymentMismatch,
				p.AmountCash.StringFixed(2), p.AmountCard.StringFixed(2), total.StringFixed(2))
		}
		return p, nil
	}
	return Payment{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidCart, p.Method)
}

func decrementRows(records []fulfillment.DecrementRecord) []models.SaleDecrement {
	rows := make([]models.SaleDecrement, 0, len(records))
	for _, r := range records {
		row := models.SaleDecrement{LineIndex: r.Line, Type: string(r.Type), Quantity: r.Quantity}
		if r.ItemID != 0 {
			id := r.ItemID
			row.ItemID = &id
		}
		if r.BatchID != 0 {
			id := r.BatchID
			row.BatchID = &id
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *Service) Get(ctx context.Context, companyID uint, reference uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Decrements", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("company_id = ? AND reference = ?", companyID, reference).
		First(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// List returns the company's sales, newest first, optionally from a given time.
func (s *Service) List(ctx context.Context, companyID uint, since *time.Time, limit int) ([]models.Sale, error) {
	q := s.db.WithContext(ctx).Where("company_id = ?", companyID)
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Sale
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
