package service

import (
	"github.com/shopspring/decimal"

	"cafeteria/internal/models"
)

// Totals summarizes one day of the till ledger.
type Totals struct {
	Menus      int             `json:"menus"`
	Students   int             `json:"eleves"`
	Staff      int             `json:"profs"`
	Sandwiches int             `json:"sandwiches"`
	Beverages  int             `json:"beverages"`
	Chocolates int             `json:"chocolates"`
	Amount     decimal.Decimal `json:"amount"`
}

// TillStats is the result of one pass over a day's till entries.
type TillStats struct {
	Totals Totals
	// PaidCount counts menu check-ins per normalized name.
	PaidCount map[string]int
	Closed    bool
}

// BuildTillStats aggregates entries, which must all belong to the same day.
// Beverage and chocolate add-ons on a menu count toward the product totals.
func BuildTillStats(entries []models.TillEntry) TillStats {
	stats := TillStats{PaidCount: make(map[string]int)}
	for _, e := range entries {
		switch e.Kind {
		case models.KindClosed:
			stats.Closed = true
			continue
		case models.KindSandwich:
			stats.Totals.Sandwiches++
		case models.KindBeverage:
			stats.Totals.Beverages++
		case models.KindChocolate:
			stats.Totals.Chocolates++
		default:
			stats.Totals.Menus++
			if e.Kind.IsStudent() {
				stats.Totals.Students++
			} else {
				stats.Totals.Staff++
			}
			if name := models.NormalizeName(e.Name); name != "" {
				stats.PaidCount[name]++
			}
			if e.Beverage.IsPositive() {
				stats.Totals.Beverages++
			}
			if e.Chocolate.IsPositive() {
				stats.Totals.Chocolates++
			}
		}
		stats.Totals.Amount = stats.Totals.Amount.Add(e.LineTotal)
	}
	return stats
}

// RemainingQueue walks reserved names in order and skips one occurrence per
// recorded check-in of the same normalized name.
func RemainingQueue(reserved []string, paidCount map[string]int) []string {
	left := make(map[string]int, len(paidCount))
	for k, v := range paidCount {
		left[k] = v
	}
	remaining := make([]string, 0, len(reserved))
	for _, name := range reserved {
		key := models.NormalizeName(name)
		if left[key] > 0 {
			left[key]--
			continue
		}
		remaining = append(remaining, name)
	}
	return remaining
}
