package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	"github.com/kalaa-market/kalaa-backend/pkg/pagination"
	"github.com/kalaa-market/kalaa-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// CreateOrderInput is the checkout payload. Items come from the active
// cart, not the request.
type CreateOrderInput struct {
	ShippingAddress types.Address
	PaymentMethod   enums.PaymentMethod
	Notes           *string
}

// UpdateStatusInput carries an admin status transition.
type UpdateStatusInput struct {
	Status         enums.OrderStatus
	TrackingNumber *string
}

// ListInput pages through orders.
type ListInput struct {
	UserID     *uuid.UUID
	Status     *enums.OrderStatus
	Pagination pagination.Params
}

// ListResult bundles one page of orders with the resolved window.
type ListResult struct {
	Orders []OrderDTO
	Page   pagination.Page
}

// OrderItemDTO is the client-facing projection of an order line.
type OrderItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Thumbnail string          `json:"thumbnail"`
}

// OrderDTO is the client-facing projection of an order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	Items           []OrderItemDTO      `json:"items"`
	ShippingAddress types.Address       `json:"shipping_address"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	ItemsPrice      decimal.Decimal     `json:"items_price"`
	TaxPrice        decimal.Decimal     `json:"tax_price"`
	ShippingPrice   decimal.Decimal     `json:"shipping_price"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
	Status          enums.OrderStatus   `json:"status"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

func toOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		ItemsPrice:      order.ItemsPrice,
		TaxPrice:        order.TaxPrice,
		ShippingPrice:   order.ShippingPrice,
		TotalPrice:      order.TotalPrice,
		Status:          order.Status,
		TrackingNumber:  order.TrackingNumber,
		Notes:           order.Notes,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Thumbnail: item.Thumbnail,
		})
	}
	return dto
}
