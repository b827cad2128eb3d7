package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kalaa-market/kalaa-backend/pkg/db/models"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	"github.com/kalaa-market/kalaa-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  artist_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  category TEXT NOT NULL,
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  thumbnail TEXT NOT NULL,
  images TEXT,
  tags TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_featured INTEGER NOT NULL DEFAULT 0,
  average_rating REAL NOT NULL DEFAULT 0,
  num_reviews INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	ratings := `
CREATE TABLE IF NOT EXISTS product_ratings (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  rating INTEGER NOT NULL,
  review TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(ratings).Error)
	require.NoError(t, db.Exec("DELETE FROM products").Error)
	require.NoError(t, db.Exec("DELETE FROM product_ratings").Error)

	return db
}

func seedProduct(t *testing.T, repo *Repository, mutate func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		ArtistID:    uuid.New(),
		Name:        "Handwoven Scarf",
		Description: "Naturally dyed wool scarf",
		Category:    enums.ProductCategoryClothing,
		Price:       decimal.RequireFromString("49.99"),
		Stock:       10,
		Thumbnail:   "scarf.jpg",
		IsActive:    true,
	}
	if mutate != nil {
		mutate(product)
	}
	created, err := repo.Create(context.Background(), product)
	require.NoError(t, err)
	return created
}

func TestProductRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))

	created := seedProduct(t, repo, nil)

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Handwoven Scarf", found.Name)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("49.99")))
}

func TestProductRepositoryListFilters(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))

	artist := uuid.New()
	seedProduct(t, repo, func(p *models.Product) {
		p.ArtistID = artist
		p.Name = "Ceramic Bowl"
		p.Category = enums.ProductCategoryHome
		p.IsFeatured = true
	})
	seedProduct(t, repo, func(p *models.Product) {
		p.Name = "Poetry Collection"
		p.Category = enums.ProductCategoryBooks
	})
	seedProduct(t, repo, func(p *models.Product) {
		p.Name = "Hidden Listing"
		p.IsActive = false
	})

	rows, total, err := repo.List(context.Background(), ListInput{Pagination: pagination.Params{Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "inactive listings are excluded")
	assert.Len(t, rows, 2)

	home := enums.ProductCategoryHome
	rows, total, err = repo.List(context.Background(), ListInput{
		Filters:    ListFilters{Category: &home},
		Pagination: pagination.Params{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Ceramic Bowl", rows[0].Name)

	featured := true
	_, total, err = repo.List(context.Background(), ListInput{
		Filters:    ListFilters{Featured: &featured},
		Pagination: pagination.Params{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.List(context.Background(), ListInput{
		Filters:    ListFilters{Query: "poetry"},
		Pagination: pagination.Params{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.List(context.Background(), ListInput{
		Filters:    ListFilters{ArtistID: &artist},
		Pagination: pagination.Params{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestProductRepositoryListSort(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))

	seedProduct(t, repo, func(p *models.Product) {
		p.Name = "Budget Print"
		p.Price = decimal.RequireFromString("9.00")
	})
	seedProduct(t, repo, func(p *models.Product) {
		p.Name = "Gallery Piece"
		p.Price = decimal.RequireFromString("250.00")
		p.AverageRating = 4.8
		p.NumReviews = 12
	})

	rows, _, err := repo.List(context.Background(), ListInput{
		Filters:    ListFilters{Sort: ListSortPriceAsc},
		Pagination: pagination.Params{Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Budget Print", rows[0].Name)

	rows, _, err = repo.List(context.Background(), ListInput{
		Filters:    ListFilters{Sort: ListSortPriceDesc},
		Pagination: pagination.Params{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "Gallery Piece", rows[0].Name)

	rows, _, err = repo.List(context.Background(), ListInput{
		Filters:    ListFilters{Sort: ListSortRating},
		Pagination: pagination.Params{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "Gallery Piece", rows[0].Name)
}

func TestProductRepositoryDecrementStock(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))
	created := seedProduct(t, repo, func(p *models.Product) { p.Stock = 5 })

	require.NoError(t, repo.DecrementStock(context.Background(), created.ID, 3))

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Stock)

	err = repo.DecrementStock(context.Background(), created.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	found, err = repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Stock, "failed decrement must not change stock")

	require.NoError(t, repo.IncrementStock(context.Background(), created.ID, 4))
	found, err = repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, found.Stock)
}

func TestProductRepositoryUpsertRatingAggregates(t *testing.T) {
	repo := NewRepository(setupProductsTestDB(t))
	created := seedProduct(t, repo, nil)

	reviewer := uuid.New()
	_, err := repo.UpsertRating(context.Background(), &models.ProductRating{
		ProductID: created.ID,
		UserID:    reviewer,
		Rating:    4,
	})
	require.NoError(t, err)

	_, err = repo.UpsertRating(context.Background(), &models.ProductRating{
		ProductID: created.ID,
		UserID:    uuid.New(),
		Rating:    2,
	})
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.NumReviews)
	assert.InDelta(t, 3.0, found.AverageRating, 0.001)

	// the same reviewer updates in place instead of adding a second row
	_, err = repo.UpsertRating(context.Background(), &models.ProductRating{
		ProductID: created.ID,
		UserID:    reviewer,
		Rating:    5,
	})
	require.NoError(t, err)

	found, err = repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.NumReviews)
	assert.InDelta(t, 3.5, found.AverageRating, 0.001)
}
