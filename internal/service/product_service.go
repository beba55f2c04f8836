package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"nighttangerine-pos/internal/domain"
	"nighttangerine-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultImageMime = "application/octet-stream"

var dataURIPattern = regexp.MustCompile(`(?i)^data:([a-z0-9.+\-/]+);base64,(.+)$`)

var (
	ErrInvalidProduct = errors.New("name, price and category are required")
	ErrInvalidPrice   = errors.New("price must be greater than 0")
	ErrInvalidImage   = errors.New("invalid base64 image data")
)

// ImageInput is the normalized image portion of a product request. The
// transport layer folds accepted field aliases into this one shape; Set
// distinguishes "field present" from "field absent" so updates can clear an
// image with an explicit null.
type ImageInput struct {
	Base64Set bool
	Base64    *string
	MimeType  *string
	URLSet    bool
	URL       *string
}

// imageChange is the resolved effect of an ImageInput on a product row. At
// most one representation is authoritative: setting one clears the other.
type imageChange struct {
	apply    bool
	data     []byte
	mimeType *string
	url      *string
}

// CreateProductInput carries the validated fields for a new product.
type CreateProductInput struct {
	Name      string
	Price     decimal.Decimal
	Category  string
	Amount    *string
	Hidden    bool
	Available bool
	Image     ImageInput
}

// UpdateProductInput carries a partial update; nil pointers leave the
// corresponding field untouched. AmountSet allows clearing amount with null.
type UpdateProductInput struct {
	Name      *string
	Price     *decimal.Decimal
	Category  *string
	Amount    *string
	AmountSet bool
	Hidden    *bool
	Available *bool
	Image     ImageInput
}

// ProductService defines the interface for product business logic
type ProductService interface {
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleAvailability(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListAll(ctx context.Context) ([]*domain.Product, error)
	ListAvailable(ctx context.Context) ([]*domain.Product, error)
	ListByCategory(ctx context.Context, category string) ([]*domain.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

// Create validates and stores a new product.
func (s *productService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)
	if name == "" || category == "" {
		return nil, ErrInvalidProduct
	}
	if !input.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	change, err := resolveImageInput(input.Image)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     input.Price,
		Category:  category,
		Amount:    trimAmount(input.Amount),
		Available: input.Available,
		Hidden:    input.Hidden,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if change.apply {
		product.ImageData = change.data
		product.ImageMimeType = change.mimeType
		product.ImageURL = change.url
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// Update applies only the fields present in the input. Supplying an image
// representation of either kind clears the other kind.
func (s *productService) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidProduct
		}
		product.Name = name
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return nil, ErrInvalidProduct
		}
		product.Category = category
	}
	if input.Price != nil {
		if !input.Price.IsPositive() {
			return nil, ErrInvalidPrice
		}
		product.Price = *input.Price
	}
	if input.AmountSet {
		product.Amount = trimAmount(input.Amount)
	}
	if input.Hidden != nil {
		product.Hidden = *input.Hidden
	}
	if input.Available != nil {
		product.Available = *input.Available
	}

	change, err := resolveImageInput(input.Image)
	if err != nil {
		return nil, err
	}
	if change.apply {
		product.ImageData = change.data
		product.ImageMimeType = change.mimeType
		product.ImageURL = change.url
	}

	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// Delete hard-deletes a product unless it appears in any order.
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.productRepo.Delete(ctx, id)
}

// ToggleAvailability flips the hidden flag.
func (s *productService) ToggleAvailability(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Hidden = !product.Hidden
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

func (s *productService) ListAll(ctx context.Context) ([]*domain.Product, error) {
	return s.productRepo.FindAll(ctx)
}

func (s *productService) ListAvailable(ctx context.Context) ([]*domain.Product, error) {
	return s.productRepo.FindAvailable(ctx)
}

func (s *productService) ListByCategory(ctx context.Context, category string) ([]*domain.Product, error) {
	return s.productRepo.FindByCategory(ctx, category)
}

// resolveImageInput turns the normalized request fields into a concrete image
// change. Base64 payloads may arrive bare or as a data URI; decode failures
// and empty payloads report ErrInvalidImage.
func resolveImageInput(input ImageInput) (imageChange, error) {
	if input.Base64Set {
		if input.Base64 == nil || strings.TrimSpace(*input.Base64) == "" {
			// Explicit null or blank clears both representations.
			return imageChange{apply: true}, nil
		}

		raw := strings.TrimSpace(*input.Base64)
		mime := defaultImageMime
		if input.MimeType != nil && strings.TrimSpace(*input.MimeType) != "" {
			mime = strings.TrimSpace(*input.MimeType)
		}

		if match := dataURIPattern.FindStringSubmatch(raw); match != nil {
			mime = match[1]
			raw = match[2]
		}

		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(data) == 0 {
			return imageChange{}, ErrInvalidImage
		}

		return imageChange{apply: true, data: data, mimeType: &mime}, nil
	}

	if input.URLSet {
		if input.URL == nil || strings.TrimSpace(*input.URL) == "" {
			return imageChange{apply: true}, nil
		}
		url := strings.TrimSpace(*input.URL)
		return imageChange{apply: true, url: &url}, nil
	}

	return imageChange{}, nil
}

func trimAmount(amount *string) *string {
	if amount == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*amount)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
