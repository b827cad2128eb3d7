package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalaa-market/kalaa-backend/api/middleware"
	"github.com/kalaa-market/kalaa-backend/api/responses"
	"github.com/kalaa-market/kalaa-backend/api/validators"
	"github.com/kalaa-market/kalaa-backend/internal/products"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	pkgerrors "github.com/kalaa-market/kalaa-backend/pkg/errors"
	"github.com/kalaa-market/kalaa-backend/pkg/logger"
	"github.com/kalaa-market/kalaa-backend/pkg/pagination"
)

type createProductRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Price       string   `json:"price" validate:"required"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Thumbnail   string   `json:"thumbnail" validate:"required"`
	Images      []string `json:"images,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
	IsFeatured  bool     `json:"is_featured,omitempty"`
}

type updateProductRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Price       *string   `json:"price,omitempty"`
	Stock       *int      `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Thumbnail   *string   `json:"thumbnail,omitempty"`
	Images      *[]string `json:"images,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
	IsFeatured  *bool     `json:"is_featured,omitempty"`
}

type rateProductRequest struct {
	Rating int     `json:"rating" validate:"required,min=1,max=5"`
	Review *string `json:"review,omitempty"`
}

// ProductList serves the public browse endpoint with filters and paging.
func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		filters, err := parseListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), products.ListInput{
			Filters:    filters,
			Pagination: pagination.FromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"products":   result.Products,
			"pagination": result.Page,
		})
	}
}

// ProductDetail serves a single public listing with its ratings.
func ProductDetail(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, ratings, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"product": product,
			"ratings": ratings,
		})
	}
}

// ProductCreate lets artists and admins publish a listing.
func ProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := toCreateInput(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		product, err := svc.CreateProduct(r.Context(), userID, role, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// ProductUpdate applies a partial update to an owned listing.
func ProductUpdate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := toUpdateInput(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		product, err := svc.UpdateProduct(r.Context(), userID, role, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// ProductDelete removes an owned listing.
func ProductDelete(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		if err := svc.DeleteProduct(r.Context(), userID, role, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ProductRate records the caller's rating for a listing.
func ProductRate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rating, err := svc.RateProduct(r.Context(), userID, productID, products.RatingInput{
			Rating: body.Rating,
			Review: body.Review,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, rating)
	}
}

// ProductMine lists the caller's own listings, active or not.
func ProductMine(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listings, err := svc.ListByArtist(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"products": listings})
	}
}

func parseListFilters(r *http.Request) (products.ListFilters, error) {
	filters := products.ListFilters{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category := enums.ProductCategory(raw)
		if !category.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
		}
		filters.Category = &category
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("artist_id")); raw != "" {
		artistID, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid artist id")
		}
		filters.ArtistID = &artistID
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid featured flag")
		}
		filters.Featured = &featured
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("sort")); raw != "" {
		sort := products.ListSort(raw)
		if !sort.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort")
		}
		filters.Sort = sort
	}
	return filters, nil
}

func toCreateInput(body createProductRequest) (products.CreateProductInput, error) {
	category := enums.ProductCategory(body.Category)
	if !category.IsValid() {
		return products.CreateProductInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return products.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}
	return products.CreateProductInput{
		Name:        body.Name,
		Description: body.Description,
		Category:    category,
		Price:       price,
		Stock:       body.Stock,
		Thumbnail:   body.Thumbnail,
		Images:      body.Images,
		Tags:        body.Tags,
		IsActive:    isActive,
		IsFeatured:  body.IsFeatured,
	}, nil
}

func toUpdateInput(body updateProductRequest) (products.UpdateProductInput, error) {
	input := products.UpdateProductInput{
		Name:        body.Name,
		Description: body.Description,
		Stock:       body.Stock,
		Thumbnail:   body.Thumbnail,
		Images:      body.Images,
		Tags:        body.Tags,
		IsActive:    body.IsActive,
		IsFeatured:  body.IsFeatured,
	}
	if body.Category != nil {
		category := enums.ProductCategory(*body.Category)
		if !category.IsValid() {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
		}
		input.Category = &category
	}
	if body.Price != nil {
		price, err := decimal.NewFromString(*body.Price)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
		}
		input.Price = &price
	}
	return input, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, param+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}
