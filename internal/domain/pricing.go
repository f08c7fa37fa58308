package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PricingKind tags which pricing shape a product uses.
type PricingKind string

const (
	// PricingFlat products have a single unit price regardless of selection.
	PricingFlat PricingKind = "flat"
	// PricingTable products look their price up by two fixed dimensions.
	PricingTable PricingKind = "table"
	// PricingAdditive products sum the contribution of every selected option.
	PricingAdditive PricingKind = "additive"
)

// Pricing is the closed sum of pricing shapes. Only the fields relevant to Kind are set:
// Amount for flat, RowDimension/ColumnDimension/Cells for table, nothing for additive.
// Option contributions of groups that are not table axes are added on top for every kind.
type Pricing struct {
	Kind            PricingKind                 `json:"kind"`
	Amount          Money                       `json:"amount,omitempty"`
	RowDimension    string                      `json:"row_dimension,omitempty"`
	ColumnDimension string                      `json:"column_dimension,omitempty"`
	Cells           map[string]map[string]Money `json:"cells,omitempty"`
}

// FlatPricing builds a flat pricing shape.
func FlatPricing(amount Money) Pricing {
	return Pricing{Kind: PricingFlat, Amount: amount}
}

// AdditivePricing builds an additive pricing shape.
func AdditivePricing() Pricing {
	return Pricing{Kind: PricingAdditive}
}

// TablePricing builds a two-level table pricing shape indexed by row then column label.
func TablePricing(rowDimension, columnDimension string, cells map[string]map[string]Money) Pricing {
	return Pricing{
		Kind:            PricingTable,
		RowDimension:    rowDimension,
		ColumnDimension: columnDimension,
		Cells:           cells,
	}
}

// IsTableAxis reports whether dimension is one of the table's two index dimensions.
func (p Pricing) IsTableAxis(dimension string) bool {
	return p.Kind == PricingTable && (dimension == p.RowDimension || dimension == p.ColumnDimension)
}

// Validate checks the pricing shape against the product's variant groups.
func (p Pricing) Validate(groups VariantGroups) error {
	switch p.Kind {
	case PricingFlat:
		if p.Amount < 0 {
			return fmt.Errorf("%w: flat amount is negative", ErrInvalidPricing)
		}
	case PricingAdditive:
		if len(groups) == 0 {
			return fmt.Errorf("%w: additive pricing needs at least one variant group", ErrInvalidPricing)
		}
	case PricingTable:
		return p.validateTable(groups)
	default:
		return fmt.Errorf("%w: unknown pricing kind %q", ErrInvalidPricing, p.Kind)
	}
	return nil
}

func (p Pricing) validateTable(groups VariantGroups) error {
	if p.RowDimension == "" || p.ColumnDimension == "" || p.RowDimension == p.ColumnDimension {
		return fmt.Errorf("%w: table needs two distinct dimensions", ErrInvalidPricing)
	}
	rows, ok := groups.Group(p.RowDimension)
	if !ok {
		return fmt.Errorf("%w: table row dimension %q is not a variant group", ErrInvalidPricing, p.RowDimension)
	}
	cols, ok := groups.Group(p.ColumnDimension)
	if !ok {
		return fmt.Errorf("%w: table column dimension %q is not a variant group", ErrInvalidPricing, p.ColumnDimension)
	}
	if len(p.Cells) == 0 {
		return fmt.Errorf("%w: table has no cells", ErrInvalidPricing)
	}
	for rowLabel, row := range p.Cells {
		if _, ok := rows.Find(rowLabel); !ok {
			return fmt.Errorf("%w: table row %q is not a %s option", ErrInvalidPricing, rowLabel, p.RowDimension)
		}
		for colLabel, amount := range row {
			if _, ok := cols.Find(colLabel); !ok {
				return fmt.Errorf("%w: table column %q is not a %s option", ErrInvalidPricing, colLabel, p.ColumnDimension)
			}
			if amount < 0 {
				return fmt.Errorf("%w: table cell %s/%s is negative", ErrInvalidPricing, rowLabel, colLabel)
			}
		}
	}
	return nil
}

// Value implements driver.Valuer
func (p Pricing) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner
func (p *Pricing) Scan(value interface{}) error {
	return scanJSON(value, p)
}
