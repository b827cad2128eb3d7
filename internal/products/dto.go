package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	"github.com/kalaa-market/kalaa-backend/pkg/pagination"
	"github.com/shopspring/decimal"
)

// CreateProductInput holds the validated payload to create a listing.
type CreateProductInput struct {
	Name        string
	Description string
	Category    enums.ProductCategory
	Price       decimal.Decimal
	Stock       int
	Thumbnail   string
	Images      []string
	Tags        []string
	IsActive    bool
	IsFeatured  bool
}

// UpdateProductInput holds optional mutation values for a listing.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Category    *enums.ProductCategory
	Price       *decimal.Decimal
	Stock       *int
	Thumbnail   *string
	Images      *[]string
	Tags        *[]string
	IsActive    *bool
	IsFeatured  *bool
}

// ListSort names the supported orderings for the browse endpoint.
type ListSort string

const (
	ListSortNewest    ListSort = "newest"
	ListSortPriceAsc  ListSort = "price_asc"
	ListSortPriceDesc ListSort = "price_desc"
	ListSortRating    ListSort = "rating"
)

func (s ListSort) IsValid() bool {
	switch s {
	case ListSortNewest, ListSortPriceAsc, ListSortPriceDesc, ListSortRating:
		return true
	}
	return false
}

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	Category *enums.ProductCategory
	ArtistID *uuid.UUID
	Featured *bool
	Query    string
	Sort     ListSort
}

// ListInput captures the inputs needed to paginate and filter listings.
type ListInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// ListResult bundles one page of listings with the resolved window.
type ListResult struct {
	Products []ProductDTO
	Page     pagination.Page
}

// RatingInput is one user's review of a product.
type RatingInput struct {
	Rating int
	Review *string
}

// ProductDTO is the client-facing projection of a listing.
type ProductDTO struct {
	ID            uuid.UUID             `json:"id"`
	ArtistID      uuid.UUID             `json:"artist_id"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Category      enums.ProductCategory `json:"category"`
	Price         decimal.Decimal       `json:"price"`
	Stock         int                   `json:"stock"`
	Thumbnail     string                `json:"thumbnail"`
	Images        []string              `json:"images"`
	Tags          []string              `json:"tags"`
	IsActive      bool                  `json:"is_active"`
	IsFeatured    bool                  `json:"is_featured"`
	AverageRating float64               `json:"average_rating"`
	NumReviews    int                   `json:"num_reviews"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// RatingDTO is the client-facing projection of a review.
type RatingDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    int       `json:"rating"`
	Review    *string   `json:"review,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toProductDTO(product *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:            product.ID,
		ArtistID:      product.ArtistID,
		Name:          product.Name,
		Description:   product.Description,
		Category:      product.Category,
		Price:         product.Price,
		Stock:         product.Stock,
		Thumbnail:     product.Thumbnail,
		Images:        product.Images,
		Tags:          product.Tags,
		IsActive:      product.IsActive,
		IsFeatured:    product.IsFeatured,
		AverageRating: product.AverageRating,
		NumReviews:    product.NumReviews,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}

func toRatingDTO(rating *models.ProductRating) *RatingDTO {
	return &RatingDTO{
		ID:        rating.ID,
		ProductID: rating.ProductID,
		UserID:    rating.UserID,
		Rating:    rating.Rating,
		Review:    rating.Review,
		CreatedAt: rating.CreatedAt,
	}
}
