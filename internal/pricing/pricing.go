// Package pricing computes prescription prices. All functions are pure;
// they are called both for live estimates while a prescription is being
// typed in and for the final figures persisted with a transaction.
package pricing

import (
	"apotekpos/m/domain"
)

// CompoundServiceFee is the fixed compounding fee charged once per
// compound prescription, in Rupiah.
const CompoundServiceFee = 15000

// Ingredient is one component of a compound preparation. Quantity is
// the amount consumed per 100 units produced.
type Ingredient struct {
	UnitPrice float64
	Quantity  float64
}

// RegularLine prices one regular prescription line.
func RegularLine(unitPrice float64, quantity int64) (float64, error) {
	if quantity <= 0 {
		return 0, &domain.ValidationError{Err: domain.ErrInvalidQuantity, Details: "line quantity"}
	}
	if unitPrice < 0 {
		return 0, &domain.ValidationError{Err: domain.ErrInvalidStockValue, Details: "unit price must not be negative"}
	}
	return unitPrice * float64(quantity), nil
}

// Compound prices a compounded preparation: ingredient cost plus the
// compounding fee. Ingredient quantities are per 100 units produced, so
// the cost of each ingredient is price × (quantity/100) × unitsProduced.
// The per-100 convention matches how compositions are written on the
// prescription and must not be collapsed into a per-unit multiply.
func Compound(ingredients []Ingredient, unitsProduced int64, serviceFee float64) (float64, error) {
	if len(ingredients) == 0 {
		return 0, &domain.ValidationError{Err: domain.ErrEmptyComposition}
	}
	if unitsProduced <= 0 {
		return 0, &domain.ValidationError{Err: domain.ErrInvalidQuantity, Details: "units produced"}
	}
	if serviceFee < 0 {
		return 0, &domain.ValidationError{Err: domain.ErrInvalidStockValue, Details: "service fee must not be negative"}
	}

	var cost float64
	for _, ing := range ingredients {
		if ing.Quantity <= 0 {
			return 0, &domain.ValidationError{Err: domain.ErrInvalidQuantity, Details: "ingredient quantity"}
		}
		cost += ing.UnitPrice * (ing.Quantity / 100) * float64(unitsProduced)
	}
	return cost + serviceFee, nil
}
