package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Option is one selectable label within a variant group and its price contribution.
type Option struct {
	Label             string `json:"label"`
	PriceContribution Money  `json:"price_contribution"`
}

// VariantGroup is one selectable product dimension (size, metal, diamondType, color...).
type VariantGroup struct {
	Dimension string   `json:"dimension"`
	Options   []Option `json:"options"`
}

// Find returns the option carrying label.
func (g VariantGroup) Find(label string) (Option, bool) {
	for _, opt := range g.Options {
		if opt.Label == label {
			return opt, true
		}
	}
	return Option{}, false
}

// VariantGroups is the ordered list of a product's groups, stored as JSONB.
type VariantGroups []VariantGroup

// Group returns the group for dimension.
func (gs VariantGroups) Group(dimension string) (VariantGroup, bool) {
	for _, g := range gs {
		if g.Dimension == dimension {
			return g, true
		}
	}
	return VariantGroup{}, false
}

// Validate checks that dimensions are unique, every group has options, labels are
// unique within a group and contributions are non-negative.
func (gs VariantGroups) Validate() error {
	seen := make(map[string]bool, len(gs))
	for _, g := range gs {
		if g.Dimension == "" {
			return fmt.Errorf("%w: variant group without dimension", ErrInvalidPricing)
		}
		if seen[g.Dimension] {
			return fmt.Errorf("%w: duplicate dimension %q", ErrInvalidPricing, g.Dimension)
		}
		seen[g.Dimension] = true

		if len(g.Options) == 0 {
			return fmt.Errorf("%w: dimension %q has no options", ErrInvalidPricing, g.Dimension)
		}
		labels := make(map[string]bool, len(g.Options))
		for _, opt := range g.Options {
			if labels[opt.Label] {
				return fmt.Errorf("%w: duplicate label %q in dimension %q", ErrInvalidPricing, opt.Label, g.Dimension)
			}
			labels[opt.Label] = true
			if opt.PriceContribution < 0 {
				return fmt.Errorf("%w: negative contribution for %q in dimension %q", ErrInvalidPricing, opt.Label, g.Dimension)
			}
		}
	}
	return nil
}

// Value implements driver.Valuer
func (gs VariantGroups) Value() (driver.Value, error) {
	if gs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(gs)
}

// Scan implements sql.Scanner
func (gs *VariantGroups) Scan(value interface{}) error {
	return scanJSON(value, gs)
}

// Images is an ordered list of image URLs, stored as JSONB.
type Images []string

// Value implements driver.Valuer
func (im Images) Value() (driver.Value, error) {
	if im == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(im)
}

// Scan implements sql.Scanner
func (im *Images) Scan(value interface{}) error {
	return scanJSON(value, im)
}

// Product represents a product in the catalog. Products are read-only for shoppers.
type Product struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	CategoryID    uuid.UUID     `json:"category_id" db:"category_id"`
	Name          string        `json:"name" db:"name"`
	Description   string        `json:"description" db:"description"`
	Images        Images        `json:"images" db:"images"`
	VariantGroups VariantGroups `json:"variant_groups" db:"variant_groups"`
	Pricing       Pricing       `json:"pricing" db:"pricing"`
	DiscountLabel string        `json:"discount_label,omitempty" db:"discount_label"`
	OriginalPrice *Money        `json:"original_price,omitempty" db:"original_price"`
	DisplayPrice  Money         `json:"display_price" db:"display_price"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// PrimaryImage returns the first image, or "" for products without images.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}
