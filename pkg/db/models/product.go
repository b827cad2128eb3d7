package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kalaa-market/kalaa-backend/pkg/enums"
)

// Product represents a catalog listing owned by an artist.
type Product struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ArtistID      uuid.UUID             `gorm:"column:artist_id;type:uuid;not null;index"`
	Name          string                `gorm:"column:name;not null"`
	Description   string                `gorm:"column:description;not null"`
	Category      enums.ProductCategory `gorm:"column:category;type:text;not null;index"`
	Price         decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	Stock         int                   `gorm:"column:stock;not null;default:0"`
	Thumbnail     string                `gorm:"column:thumbnail;not null"`
	Images        pq.StringArray        `gorm:"column:images;type:text[]"`
	Tags          pq.StringArray        `gorm:"column:tags;type:text[]"`
	IsActive      bool                  `gorm:"column:is_active;not null;default:true"`
	IsFeatured    bool                  `gorm:"column:is_featured;not null;default:false"`
	AverageRating float64               `gorm:"column:average_rating;type:numeric(3,1);not null;default:0"`
	NumReviews    int                   `gorm:"column:num_reviews;not null;default:0"`
	Ratings       []ProductRating       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
