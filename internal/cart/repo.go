package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrVersionConflict signals that another writer advanced the cart version
// between load and save.
var ErrVersionConflict = errors.New("cart version conflict")

// Repository exposes persistence operations for carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new Cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	if cart.Status == "" {
		cart.Status = enums.CartStatusActive
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindActiveByUser loads the active Cart for the user including its items.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("added_at ASC")
		}).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByIDAndUser returns a Cart restricted to the provided owner.
func (r *Repository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("added_at ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// SaveVersioned persists cart header fields guarded by the version column.
// The in-memory version advances only when the row matched.
func (r *Repository) SaveVersioned(ctx context.Context, cart *models.Cart) error {
	current := cart.Version
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND version = ?", cart.ID, current).
		Updates(map[string]any{
			"status":        cart.Status,
			"total_items":   cart.TotalItems,
			"total_amount":  cart.TotalAmount,
			"last_activity": cart.LastActivity,
			"expires_at":    cart.ExpiresAt,
			"version":       current + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	cart.Version = current + 1
	return nil
}

// ReplaceItems atomically replaces the line items for the provided cart.
func (r *Repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].CartID = cartID
	}
	return tx.Create(&items).Error
}

// UpdateStatus updates the status of a Cart owned by the user.
func (r *Repository) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status enums.CartStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", status).Error
}

// MarkAbandonedBefore flips active carts idle since before the cutoff to
// abandoned. Their line items are discarded and totals zeroed in the same
// transaction.
func (r *Repository) MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var rows int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idle := tx.Model(&models.Cart{}).
			Select("id").
			Where("status = ? AND last_activity < ?", enums.CartStatusActive, cutoff)
		if err := tx.Where("cart_id IN (?)", idle).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Cart{}).
			Where("status = ? AND last_activity < ?", enums.CartStatusActive, cutoff).
			Updates(map[string]any{
				"status":       enums.CartStatusAbandoned,
				"total_items":  0,
				"total_amount": decimal.Zero,
			})
		if res.Error != nil {
			return res.Error
		}
		rows = res.RowsAffected
		return nil
	})
	return rows, err
}

// DeleteExpiredBefore removes active and abandoned carts whose expiry passed.
// Checked-out carts are retained for order history correlation.
func (r *Repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? AND status IN ?", cutoff, []enums.CartStatus{
			enums.CartStatusActive,
			enums.CartStatusAbandoned,
		}).
		Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
