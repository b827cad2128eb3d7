package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalaa-market/kalaa-backend/pkg/enums"
)

// Cart is the single active shopping cart for a user. TotalItems and
// TotalAmount are derived from Items and recomputed on every mutation;
// Version backs the optimistic-concurrency check on save.
type Cart struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index:idx_carts_user_status"`
	Status       enums.CartStatus `gorm:"column:status;type:text;not null;default:'active';index:idx_carts_user_status"`
	Items        []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	TotalItems   int              `gorm:"column:total_items;not null;default:0"`
	TotalAmount  decimal.Decimal  `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	Version      int64            `gorm:"column:version;not null;default:0"`
	LastActivity time.Time        `gorm:"column:last_activity;not null"`
	ExpiresAt    time.Time        `gorm:"column:expires_at;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ItemFor returns the line item referencing the product, or nil.
func (c *Cart) ItemFor(productID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// RecomputeTotals rederives TotalItems and TotalAmount from the line
// items. Totals are never adjusted incrementally.
func (c *Cart) RecomputeTotals() {
	total := decimal.Zero
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalItems = count
	c.TotalAmount = total.Round(2)
}
