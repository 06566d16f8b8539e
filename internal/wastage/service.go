// Package wastage writes off product outside of a sale: leftovers at close,
// discarded portions, courtesies and count adjustments.
package wastage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pos-backend/internal/audit"
	"pos-backend/internal/batch"
	"pos-backend/internal/catalog"
	"pos-backend/internal/models"
	"pos-backend/internal/stock"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalid = errors.New("invalid wastage")

type Input struct {
	SourceType models.WastageSource
	SourceID   uint
	Quantity   int64
	Reason     models.WastageReason
	Note       string
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// Register removes up to in.Quantity from the source. Removal is clamped to
// what is on hand; both the requested and the removed amount are recorded.
func (s *Service) Register(ctx context.Context, companyID, userID uint, in Input) (*models.Wastage, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalid)
	}
	if !in.Reason.Valid() {
		return nil, fmt.Errorf("%w: unknown reason %q", ErrInvalid, in.Reason)
	}

	w := models.Wastage{
		CompanyID:  companyID,
		SourceType: in.SourceType,
		SourceID:   in.SourceID,
		Requested:  in.Quantity,
		Reason:     in.Reason,
		Note:       strings.TrimSpace(in.Note),
		CreatedBy:  userID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			before int64
			err    error
		)
		switch in.SourceType {
		case models.WastageSourceBatch:
			before, err = removeFromBatch(ctx, tx, companyID, in.SourceID, in.Quantity)
		case models.WastageSourceItem:
			before, err = removeFromStock(ctx, tx, companyID, in.SourceID, in.Quantity)
		default:
			return fmt.Errorf("%w: unknown source %q", ErrInvalid, in.SourceType)
		}
		if err != nil {
			return err
		}
		w.Removed = min(before, in.Quantity)

		if err := tx.Create(&w).Error; err != nil {
			return fmt.Errorf("save wastage: %w", err)
		}

		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   companyID,
			UserID:      userID,
			EntityType:  "wastage",
			EntityID:    w.ID,
			Action:      models.AuditActionWaste,
			Description: fmt.Sprintf("Wastage (%s): %d of %d requested from %s %d", w.Reason, w.Removed, w.Requested, w.SourceType, w.SourceID),
			Before:      map[string]int64{"on_hand": before},
			After:       w,
		})
	})
	if err != nil {
		return nil, err
	}

	if w.Removed < w.Requested {
		s.log.Info("wastage clamped to stock on hand",
			zap.Uint("company_id", companyID),
			zap.String("source", string(w.SourceType)),
			zap.Uint("source_id", w.SourceID),
			zap.Int64("requested", w.Requested),
			zap.Int64("removed", w.Removed),
		)
	}
	return &w, nil
}

func removeFromBatch(ctx context.Context, tx *gorm.DB, companyID, batchID uint, qty int64) (int64, error) {
	ledger := batch.NewLedger(tx).Locking()
	b, err := ledger.Get(ctx, companyID, batchID)
	if err != nil {
		return 0, err
	}
	if b.PortionsLeft == 0 {
		return 0, nil
	}
	return b.PortionsLeft, ledger.SetPortionsLeft(ctx, companyID, batchID, max(0, b.PortionsLeft-qty))
}

func removeFromStock(ctx context.Context, tx *gorm.DB, companyID, itemID uint, qty int64) (int64, error) {
	it, err := catalog.New(tx).Item(ctx, companyID, itemID)
	if err != nil {
		return 0, err
	}
	if !it.Kind.StockTracked() {
		return 0, fmt.Errorf("%w: item %d is %s, waste its batches instead", ErrInvalid, it.ID, it.Kind)
	}

	ledger := stock.NewLedger(tx).Locking()
	current, err := ledger.CurrentQuantity(ctx, companyID, itemID)
	if err != nil {
		return 0, err
	}
	if take := min(current, qty); take > 0 {
		if _, err := ledger.Decrease(ctx, companyID, itemID, take, "wastage"); err != nil {
			return 0, err
		}
	}
	return current, nil
}

type ListFilter struct {
	SourceType models.WastageSource
	Reason     models.WastageReason
	Limit      int
}

func (s *Service) List(ctx context.Context, companyID uint, f ListFilter) ([]models.Wastage, error) {
	q := s.db.WithContext(ctx).Where("company_id = ?", companyID)
	if f.SourceType != "" {
		q = q.Where("source_type = ?", f.SourceType)
	}
	if f.Reason != "" {
		q = q.Where("reason = ?", f.Reason)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.Wastage
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list wastage: %w", err)
	}
	return out, nil
}
