package multix

import (
	"github.com/shopspring/decimal"
)

// quantityPlaces is the precision child quantities are rounded to.
// Crypto venues quote size in at most 8 decimal places.
const quantityPlaces = 8

// splitQuantity divides quantity across venues by normalized weight.
// A nil or empty weights map splits evenly. Weights that do not sum to
// 1 are normalized first; venues whose share rounds to zero are
// dropped. The rounding remainder is assigned to the venue with the
// largest weight so the children always sum to the parent quantity
// exactly.
func splitQuantity(quantity float64, venues []string, weights map[string]float64) map[string]float64 {
	if len(venues) == 0 {
		return nil
	}

	if len(weights) == 0 {
		weights = make(map[string]float64, len(venues))
		for _, v := range venues {
			weights[v] = 1
		}
	}

	total := decimal.Zero
	for _, v := range venues {
		w := weights[v]
		if w > 0 {
			total = total.Add(decimal.NewFromFloat(w))
		}
	}
	if total.IsZero() {
		return nil
	}

	qty := decimal.NewFromFloat(quantity)
	out := make(map[string]float64, len(venues))

	assigned := decimal.Zero
	largest := ""
	largestW := decimal.Zero
	for _, v := range venues {
		w := weights[v]
		if w <= 0 {
			continue
		}
		wd := decimal.NewFromFloat(w).Div(total)
		child := qty.Mul(wd).Round(quantityPlaces)
		if child.IsZero() {
			continue
		}
		out[v] = child.InexactFloat64()
		assigned = assigned.Add(child)
		if largest == "" || wd.GreaterThan(largestW) {
			largest = v
			largestW = wd
		}
	}
	if largest == "" {
		return nil
	}

	// Fold the rounding remainder into the largest allocation.
	if rem := qty.Sub(assigned); !rem.IsZero() {
		adjusted := decimal.NewFromFloat(out[largest]).Add(rem)
		if adjusted.IsPositive() {
			out[largest] = adjusted.InexactFloat64()
		} else {
			delete(out, largest)
		}
	}

	return out
}
