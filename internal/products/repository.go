package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"gorm.io/gorm"
)

// ErrInsufficientStock signals that a stock decrement would go negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository wires together catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Update saves the product.
func (r *Repository) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes the product row. Cart reconciliation handles lines that
// still reference it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindDetail loads the product with its ratings.
func (r *Repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Ratings", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns one page of active products matching the filters plus the
// total row count.
func (r *Repository) List(ctx context.Context, input ListInput) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)

	if input.Filters.Category != nil {
		query = query.Where("category = ?", *input.Filters.Category)
	}
	if input.Filters.ArtistID != nil {
		query = query.Where("artist_id = ?", *input.Filters.ArtistID)
	}
	if input.Filters.Featured != nil {
		query = query.Where("is_featured = ?", *input.Filters.Featured)
	}
	if q := strings.TrimSpace(input.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params := input.Pagination.Normalize()
	var rows []models.Product
	err := query.
		Order(orderClause(input.Filters.Sort)).
		Limit(params.Limit).
		Offset(input.Pagination.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func orderClause(sort ListSort) string {
	switch sort {
	case ListSortPriceAsc:
		return "price ASC"
	case ListSortPriceDesc:
		return "price DESC"
	case ListSortRating:
		return "average_rating DESC, num_reviews DESC"
	default:
		return "created_at DESC"
	}
}

// ListByArtist returns every listing owned by the artist, including
// inactive ones.
func (r *Repository) ListByArtist(ctx context.Context, artistID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("artist_id = ?", artistID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DecrementStock atomically reduces stock, failing when the decrement
// would go below zero.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// IncrementStock returns quantity to stock, used when an order is
// cancelled.
func (r *Repository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

// UpsertRating inserts or replaces the user's rating for a product and
// rewrites the denormalized aggregate on the product row.
func (r *Repository) UpsertRating(ctx context.Context, rating *models.ProductRating) (*models.ProductRating, error) {
	if rating.ID == uuid.Nil {
		rating.ID = uuid.New()
	}

	var existing models.ProductRating
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", rating.ProductID, rating.UserID).
		First(&existing).Error
	switch {
	case err == nil:
		existing.Rating = rating.Rating
		existing.Review = rating.Review
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		*rating = existing
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(rating).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := r.refreshRatingAggregate(ctx, rating.ProductID); err != nil {
		return nil, err
	}
	return rating, nil
}

func (r *Repository) refreshRatingAggregate(ctx context.Context, productID uuid.UUID) error {
	type aggregate struct {
		Avg   float64
		Count int64
	}
	var agg aggregate
	err := r.db.WithContext(ctx).
		Model(&models.ProductRating{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&agg).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"average_rating": agg.Avg,
			"num_reviews":    agg.Count,
		}).Error
}
