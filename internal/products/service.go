package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/pkg/config"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	pkgerrors "github.com/kalaa-market/kalaa-backend/pkg/errors"
	"github.com/kalaa-market/kalaa-backend/pkg/logger"
	"github.com/kalaa-market/kalaa-backend/pkg/pagination"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type productCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ProductCacheKey(productID string) string
}

// Service exposes catalog management and read operations.
type Service interface {
	CreateProduct(ctx context.Context, artistID uuid.UUID, role enums.UserRole, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, userID uuid.UUID, role enums.UserRole, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, userID uuid.UUID, role enums.UserRole, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, []RatingDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, input ListInput) (*ListResult, error)
	ListByArtist(ctx context.Context, artistID uuid.UUID) ([]ProductDTO, error)
	RateProduct(ctx context.Context, userID, productID uuid.UUID, input RatingInput) (*RatingDTO, error)
	Invalidate(ctx context.Context, productID uuid.UUID)
}

type service struct {
	repo     *Repository
	cache    productCache
	cacheTTL time.Duration
	logg     *logger.Logger
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, cache productCache, cfg config.CatalogConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cfg.ProductCacheTTL,
		logg:     logg,
	}, nil
}

// CreateProduct validates and persists a new listing for the artist.
func (s *service) CreateProduct(ctx context.Context, artistID uuid.UUID, role enums.UserRole, input CreateProductInput) (*ProductDTO, error) {
	if artistID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "artist id is required")
	}
	if !role.CanManageCatalog() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only artists can create listings")
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		ArtistID:    artistID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Price:       input.Price.Round(2),
		Stock:       input.Stock,
		Thumbnail:   input.Thumbnail,
		Images:      input.Images,
		Tags:        input.Tags,
		IsActive:    input.IsActive,
		IsFeatured:  input.IsFeatured,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return toProductDTO(created), nil
}

// UpdateProduct applies the provided changes to a listing the caller owns.
// Admins may edit any listing.
func (s *service) UpdateProduct(ctx context.Context, userID uuid.UUID, role enums.UserRole, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, userID, role, productID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
		}
		product.Category = *input.Category
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		product.Price = input.Price.Round(2)
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		product.Stock = *input.Stock
	}
	if input.Thumbnail != nil {
		product.Thumbnail = *input.Thumbnail
	}
	if input.Images != nil {
		product.Images = *input.Images
	}
	if input.Tags != nil {
		product.Tags = *input.Tags
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.IsFeatured != nil {
		product.IsFeatured = *input.IsFeatured
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	s.invalidate(ctx, productID)
	return toProductDTO(updated), nil
}

// DeleteProduct removes a listing. Stale cart lines are cleaned up by cart
// reconciliation, not here.
func (s *service) DeleteProduct(ctx context.Context, userID uuid.UUID, role enums.UserRole, productID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, userID, role, productID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	s.invalidate(ctx, productID)
	return nil
}

// GetProduct returns the listing detail with its reviews.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, []RatingDTO, error) {
	if productID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindDetail(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	ratings := make([]RatingDTO, 0, len(product.Ratings))
	for i := range product.Ratings {
		ratings = append(ratings, *toRatingDTO(&product.Ratings[i]))
	}
	return toProductDTO(product), ratings, nil
}

// GetByID loads a product, served from the Redis cache when warm. The
// cart engine reads stock through this path, so every stock mutation
// invalidates the cached entry.
func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	if cached := s.cacheGet(ctx, id); cached != nil {
		return cached, nil
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	s.cacheSet(ctx, product)
	return product, nil
}

// ListProducts returns one page of the public catalog.
func (s *service) ListProducts(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Filters.Category != nil && !input.Filters.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toProductDTO(&rows[i]))
	}
	return &ListResult{
		Products: dtos,
		Page:     pagination.BuildPage(input.Pagination, total),
	}, nil
}

// ListByArtist returns all of the artist's own listings.
func (s *service) ListByArtist(ctx context.Context, artistID uuid.UUID) ([]ProductDTO, error) {
	if artistID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "artist id is required")
	}
	rows, err := s.repo.ListByArtist(ctx, artistID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list artist products")
	}
	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toProductDTO(&rows[i]))
	}
	return dtos, nil
}

// RateProduct stores the user's review, one per product per user.
func (s *service) RateProduct(ctx context.Context, userID, productID uuid.UUID, input RatingInput) (*RatingDTO, error) {
	if userID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and product id are required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	if _, err := s.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	rating, err := s.repo.UpsertRating(ctx, &models.ProductRating{
		ProductID: productID,
		UserID:    userID,
		Rating:    input.Rating,
		Review:    input.Review,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save rating")
	}
	s.invalidate(ctx, productID)
	return toRatingDTO(rating), nil
}

func (s *service) loadOwned(ctx context.Context, userID uuid.UUID, role enums.UserRole, productID uuid.UUID) (*models.Product, error) {
	if userID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and product id are required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.ArtistID != userID && role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another artist")
	}
	return product, nil
}

func (s *service) cacheGet(ctx context.Context, id uuid.UUID) *models.Product {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cache.ProductCacheKey(id.String()))
	if err != nil {
		if !errors.Is(err, redislib.Nil) {
			s.logg.Warn(ctx, "product cache read failed")
		}
		return nil
	}
	var product models.Product
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		s.logg.Warn(ctx, "product cache entry corrupt")
		return nil
	}
	return &product
}

func (s *service) cacheSet(ctx context.Context, product *models.Product) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.ProductCacheKey(product.ID.String()), payload, s.cacheTTL); err != nil {
		s.logg.Warn(ctx, "product cache write failed")
	}
}

// Invalidate drops the cached entry for the product. Exposed so the
// orders flow can evict after stock changes.
func (s *service) Invalidate(ctx context.Context, productID uuid.UUID) {
	s.invalidate(ctx, productID)
}

func (s *service) invalidate(ctx context.Context, productID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.ProductCacheKey(productID.String())); err != nil {
		s.logg.Warn(ctx, "product cache invalidation failed")
	}
}

func validateCreate(input CreateProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	if input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if strings.TrimSpace(input.Thumbnail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "thumbnail is required")
	}
	return nil
}
