package pricing

import (
	"fmt"

	"jewel-store/internal/domain"
)

// DefaultSelection picks the first option of every variant group.
func DefaultSelection(product *domain.Product) domain.Selection {
	sel := make(domain.Selection, len(product.VariantGroups))
	for _, g := range product.VariantGroups {
		if len(g.Options) > 0 {
			sel[g.Dimension] = g.Options[0].Label
		}
	}
	return sel
}

// OptionsFor lists the option labels of one dimension in catalog order.
func OptionsFor(product *domain.Product, dimension string) ([]string, error) {
	group, ok := product.VariantGroups.Group(dimension)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDimension, dimension)
	}
	labels := make([]string, len(group.Options))
	for i, opt := range group.Options {
		labels[i] = opt.Label
	}
	return labels, nil
}

// ValidateProduct checks the variant groups and the pricing shape of a product
// before it enters the catalog.
func ValidateProduct(product *domain.Product) error {
	if err := product.VariantGroups.Validate(); err != nil {
		return err
	}
	return product.Pricing.Validate(product.VariantGroups)
}
