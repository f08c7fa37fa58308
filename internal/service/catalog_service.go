package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jewel-store/internal/domain"
	"jewel-store/internal/pricing"
	"jewel-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultRecommendations = 4

// ProductQuery filters the public product listing. CategorySlug is resolved to
// a category before the catalog is queried.
type ProductQuery struct {
	CategorySlug string
	Query        string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    repository.SortOrder
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// Quote is the price of a selection before it goes into the cart.
type Quote struct {
	ProductID        uuid.UUID        `json:"product_id"`
	Selection        domain.Selection `json:"selection"`
	VariantSignature string           `json:"variant_signature"`
	UnitPrice        domain.Money     `json:"unit_price"`
	Quantity         int              `json:"quantity"`
	LineTotal        domain.Money     `json:"line_total"`
}

// OptionInput is a variant option as an admin submits it, priced in major units.
type OptionInput struct {
	Label             string          `json:"label" validate:"required"`
	PriceContribution decimal.Decimal `json:"price_contribution"`
}

// VariantGroupInput is a variant group as an admin submits it.
type VariantGroupInput struct {
	Dimension string        `json:"dimension" validate:"required"`
	Options   []OptionInput `json:"options" validate:"required,min=1,dive"`
}

// PricingInput is a pricing shape as an admin submits it, amounts in major units.
type PricingInput struct {
	Kind            domain.PricingKind                    `json:"kind" validate:"required,oneof=flat table additive"`
	Amount          decimal.Decimal                       `json:"amount"`
	RowDimension    string                                `json:"row_dimension,omitempty"`
	ColumnDimension string                                `json:"column_dimension,omitempty"`
	Cells           map[string]map[string]decimal.Decimal `json:"cells,omitempty"`
}

// ProductInput is the admin create/update payload.
type ProductInput struct {
	CategoryID    uuid.UUID           `json:"category_id" validate:"required"`
	Name          string              `json:"name" validate:"required,max=200"`
	Description   string              `json:"description"`
	Images        []string            `json:"images" validate:"dive,url"`
	VariantGroups []VariantGroupInput `json:"variant_groups" validate:"dive"`
	Pricing       PricingInput        `json:"pricing"`
	DiscountLabel string              `json:"discount_label,omitempty" validate:"max=50"`
	OriginalPrice *decimal.Decimal    `json:"original_price,omitempty"`
}

// CatalogService serves the storefront catalog and the admin product management.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, slug, name, description string) (*domain.Category, error)
	ListProducts(ctx context.Context, query ProductQuery) (*ProductPage, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Options(ctx context.Context, id uuid.UUID, dimension string) ([]string, error)
	Quote(ctx context.Context, id uuid.UUID, sel domain.Selection, quantity int) (*Quote, error)
	Recommended(ctx context.Context, id uuid.UUID, limit int) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *catalogService) CreateCategory(ctx context.Context, slug, name, description string) (*domain.Category, error) {
	category := &domain.Category{
		ID:          uuid.New(),
		Slug:        strings.ToLower(strings.TrimSpace(slug)),
		Name:        strings.TrimSpace(name),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	s.logger.Info("Category created", zap.String("slug", category.Slug))
	return category, nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductQuery) (*ProductPage, error) {
	filter := repository.ListFilter{
		Query:     query.Query,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	if slug := strings.TrimSpace(query.CategorySlug); slug != "" {
		category, err := s.categories.FindBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		filter.CategoryID = &category.ID
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ProductPage{
		Products: products,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *catalogService) Options(ctx context.Context, id uuid.UUID, dimension string) ([]string, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return pricing.OptionsFor(product, dimension)
}

// Quote prices a selection of a product. An empty selection quotes the default one.
func (s *catalogService) Quote(ctx context.Context, id uuid.UUID, sel domain.Selection, quantity int) (*Quote, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(sel) == 0 {
		sel = pricing.DefaultSelection(product)
	}

	unit, err := pricing.ResolveUnitPrice(product, sel)
	if err != nil {
		return nil, err
	}
	total, err := pricing.ResolveLineTotal(unit, quantity)
	if err != nil {
		return nil, err
	}

	return &Quote{
		ProductID:        product.ID,
		Selection:        sel,
		VariantSignature: sel.Signature(),
		UnitPrice:        unit,
		Quantity:         quantity,
		LineTotal:        total,
	}, nil
}

func (s *catalogService) Recommended(ctx context.Context, id uuid.UUID, limit int) ([]*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 20 {
		limit = defaultRecommendations
	}
	return s.products.Recommended(ctx, product.CategoryID, product.ID, limit)
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if _, err := s.categories.FindByID(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyProductInput(product, input); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("pricing_kind", string(product.Pricing.Kind)),
		zap.Stringer("display_price", product.DisplayPrice),
	)
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.CategoryID != product.CategoryID {
		if _, err := s.categories.FindByID(ctx, input.CategoryID); err != nil {
			return nil, err
		}
	}

	if err := applyProductInput(product, input); err != nil {
		return nil, err
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product updated", zap.String("product_id", product.ID.String()))
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

// applyProductInput converts major-unit amounts to Money, validates the variant
// catalog and pricing shape, and prices the default selection for listings.
func applyProductInput(product *domain.Product, input ProductInput) error {
	groups, err := toVariantGroups(input.VariantGroups)
	if err != nil {
		return err
	}
	p, err := toPricing(input.Pricing)
	if err != nil {
		return err
	}

	product.CategoryID = input.CategoryID
	product.Name = strings.TrimSpace(input.Name)
	product.Description = input.Description
	product.Images = domain.Images(input.Images)
	product.VariantGroups = groups
	product.Pricing = p
	product.DiscountLabel = input.DiscountLabel
	product.OriginalPrice = nil
	if input.OriginalPrice != nil {
		original, err := domain.MoneyFromDecimal(*input.OriginalPrice)
		if err != nil {
			return err
		}
		product.OriginalPrice = &original
	}

	if err := pricing.ValidateProduct(product); err != nil {
		return err
	}

	display, err := pricing.ResolveUnitPrice(product, pricing.DefaultSelection(product))
	if err != nil {
		return fmt.Errorf("%w: default selection has no price: %w", domain.ErrInvalidPricing, err)
	}
	product.DisplayPrice = display
	return nil
}

func toVariantGroups(inputs []VariantGroupInput) (domain.VariantGroups, error) {
	groups := make(domain.VariantGroups, 0, len(inputs))
	for _, in := range inputs {
		group := domain.VariantGroup{
			Dimension: strings.TrimSpace(in.Dimension),
			Options:   make([]domain.Option, 0, len(in.Options)),
		}
		for _, opt := range in.Options {
			contribution, err := domain.MoneyFromDecimal(opt.PriceContribution)
			if err != nil {
				return nil, fmt.Errorf("option %s/%s: %w", group.Dimension, opt.Label, err)
			}
			group.Options = append(group.Options, domain.Option{
				Label:             strings.TrimSpace(opt.Label),
				PriceContribution: contribution,
			})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func toPricing(in PricingInput) (domain.Pricing, error) {
	switch in.Kind {
	case domain.PricingFlat:
		amount, err := domain.MoneyFromDecimal(in.Amount)
		if err != nil {
			return domain.Pricing{}, err
		}
		return domain.FlatPricing(amount), nil
	case domain.PricingAdditive:
		return domain.AdditivePricing(), nil
	case domain.PricingTable:
		cells := make(map[string]map[string]domain.Money, len(in.Cells))
		for row, cols := range in.Cells {
			cells[row] = make(map[string]domain.Money, len(cols))
			for col, amount := range cols {
				m, err := domain.MoneyFromDecimal(amount)
				if err != nil {
					return domain.Pricing{}, fmt.Errorf("cell %s/%s: %w", row, col, err)
				}
				cells[row][col] = m
			}
		}
		return domain.TablePricing(in.RowDimension, in.ColumnDimension, cells), nil
	default:
		return domain.Pricing{}, fmt.Errorf("%w: unknown pricing kind %q", domain.ErrInvalidPricing, in.Kind)
	}
}

