package pricing

import (
	"fmt"

	"jewel-store/internal/domain"
)

// Resolver computes the unit price of a complete, validated selection for one pricing shape.
type Resolver interface {
	UnitPrice(product *domain.Product, sel domain.Selection) (domain.Money, error)
}

type flatResolver struct{}

func (flatResolver) UnitPrice(product *domain.Product, sel domain.Selection) (domain.Money, error) {
	return product.Pricing.Amount + contributions(product, sel), nil
}

type additiveResolver struct{}

func (additiveResolver) UnitPrice(product *domain.Product, sel domain.Selection) (domain.Money, error) {
	return contributions(product, sel), nil
}

type tableResolver struct{}

func (tableResolver) UnitPrice(product *domain.Product, sel domain.Selection) (domain.Money, error) {
	p := product.Pricing
	row, col := sel[p.RowDimension], sel[p.ColumnDimension]
	cell, ok := p.Cells[row][col]
	if !ok {
		return 0, fmt.Errorf("%w: no price for %s %q with %s %q",
			domain.ErrInvalidOptionLabel, p.RowDimension, row, p.ColumnDimension, col)
	}
	return cell + contributions(product, sel), nil
}

var resolvers = map[domain.PricingKind]Resolver{
	domain.PricingFlat:     flatResolver{},
	domain.PricingAdditive: additiveResolver{},
	domain.PricingTable:    tableResolver{},
}

// ResolverFor returns the strategy for a pricing kind.
func ResolverFor(kind domain.PricingKind) (Resolver, error) {
	r, ok := resolvers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown pricing kind %q", domain.ErrInvalidPricing, kind)
	}
	return r, nil
}

// ResolveUnitPrice validates the selection against every variant group and prices it.
// A dimension missing from sel fails with ErrIncompleteSelection, a label outside the
// group's options fails with ErrInvalidOptionLabel. Extra dimensions are rejected with
// ErrUnknownDimension so they cannot leak into the variant signature.
func ResolveUnitPrice(product *domain.Product, sel domain.Selection) (domain.Money, error) {
	for _, g := range product.VariantGroups {
		label, ok := sel[g.Dimension]
		if !ok {
			return 0, fmt.Errorf("%w: %s", domain.ErrIncompleteSelection, g.Dimension)
		}
		if _, ok := g.Find(label); !ok {
			return 0, fmt.Errorf("%w: %q is not a %s option", domain.ErrInvalidOptionLabel, label, g.Dimension)
		}
	}
	for dimension := range sel {
		if _, ok := product.VariantGroups.Group(dimension); !ok {
			return 0, fmt.Errorf("%w: %q", domain.ErrUnknownDimension, dimension)
		}
	}

	r, err := ResolverFor(product.Pricing.Kind)
	if err != nil {
		return 0, err
	}
	return r.UnitPrice(product, sel)
}

// ResolveLineTotal multiplies a unit price by a positive quantity.
func ResolveLineTotal(unitPrice domain.Money, quantity int) (domain.Money, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	return unitPrice.Times(quantity), nil
}

// contributions sums the selected option of every group that is not a table axis.
func contributions(product *domain.Product, sel domain.Selection) domain.Money {
	var sum domain.Money
	for _, g := range product.VariantGroups {
		if product.Pricing.IsTableAxis(g.Dimension) {
			continue
		}
		if opt, ok := g.Find(sel[g.Dimension]); ok {
			sum += opt.PriceContribution
		}
	}
	return sum
}
