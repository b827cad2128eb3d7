package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Adjustment reasons reported back to the client after reconciliation.
const (
	AdjustmentReasonRemoved = "removed"
	AdjustmentReasonClamped = "clamped"
)

// Adjustment describes one silent correction applied to the cart, either
// because the product disappeared or because stock no longer covers the
// held quantity.
type Adjustment struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Reason      string    `json:"reason"`
	Requested   int       `json:"requested_quantity"`
	Available   int       `json:"available_stock"`
}

// ItemView is the client-facing projection of a cart line.
type ItemView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Thumbnail string          `json:"thumbnail"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	AddedAt   time.Time       `json:"added_at"`
}

// View is the client-facing projection of a cart plus any adjustments
// applied while serving the request.
type View struct {
	ID           uuid.UUID        `json:"id"`
	Status       enums.CartStatus `json:"status"`
	Items        []ItemView       `json:"items"`
	TotalItems   int              `json:"total_items"`
	TotalAmount  decimal.Decimal  `json:"total_amount"`
	LastActivity time.Time        `json:"last_activity"`
	ExpiresAt    time.Time        `json:"expires_at"`
	Adjustments  []Adjustment     `json:"adjustments,omitempty"`
}

func buildView(cart *models.Cart, names map[uuid.UUID]productMeta, adjustments []Adjustment) *View {
	view := &View{
		ID:           cart.ID,
		Status:       cart.Status,
		Items:        make([]ItemView, 0, len(cart.Items)),
		TotalItems:   cart.TotalItems,
		TotalAmount:  cart.TotalAmount,
		LastActivity: cart.LastActivity,
		ExpiresAt:    cart.ExpiresAt,
		Adjustments:  adjustments,
	}
	for _, item := range cart.Items {
		meta := names[item.ProductID]
		view.Items = append(view.Items, ItemView{
			ProductID: item.ProductID,
			Name:      meta.name,
			Thumbnail: meta.thumbnail,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
			AddedAt:   item.AddedAt,
		})
	}
	return view
}

type productMeta struct {
	name      string
	thumbnail string
}

// emptyView stands in for a missing cart when a no-op mutation (remove,
// clear) has nothing to load.
func emptyView(now, expires time.Time) *View {
	return &View{
		Status:       enums.CartStatusActive,
		Items:        []ItemView{},
		TotalAmount:  decimal.Zero,
		LastActivity: now,
		ExpiresAt:    expires,
	}
}
