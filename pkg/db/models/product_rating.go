package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductRating stores one review per user per product.
type ProductRating struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_ratings_product_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_product_ratings_product_user"`
	Rating    int       `gorm:"column:rating;not null"`
	Review    *string   `gorm:"column:review"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
