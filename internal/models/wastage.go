package models

import "time"

type WastageSource string

const (
	WastageSourceBatch WastageSource = "batch"
	WastageSourceItem  WastageSource = "item"
)

type WastageReason string

const (
	WastageLeftover   WastageReason = "leftover"
	WastageDiscard    WastageReason = "discard"
	WastageCourtesy   WastageReason = "courtesy"
	WastageAdjustment WastageReason = "adjustment"
)

func (r WastageReason) Valid() bool {
	switch r {
	case WastageLeftover, WastageDiscard, WastageCourtesy, WastageAdjustment:
		return true
	}
	return false
}

// Wastage records product written off outside of a sale.
type Wastage struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	CompanyID  uint          `gorm:"index;not null" json:"company_id"`
	SourceType WastageSource `gorm:"size:10;not null" json:"source_type"`
	SourceID   uint          `gorm:"index;not null" json:"source_id"`
	Requested  int64         `gorm:"not null" json:"requested"`
	Removed    int64         `gorm:"not null" json:"removed"` // clamped to what was on hand
	Reason     WastageReason `gorm:"size:20;not null" json:"reason"`
	Note       string        `gorm:"size:255" json:"note"`
	CreatedBy  uint          `json:"created_by"`
	CreatedAt  time.Time     `gorm:"index" json:"created_at"`
}
