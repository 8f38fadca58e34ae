package balance

import (
	"math"
	"time"
)

// PlaceholderCategory marks a generation or demand sequence that carried no
// usable entries in the upstream payload.
const PlaceholderCategory = "unavailable"

// RenewableCategories is the fixed set of category slugs counted as
// renewable generation when computing the renewable share.
var RenewableCategories = map[string]struct{}{
	"hydro":            {},
	"wind":             {},
	"solar-pv":         {},
	"solar-thermal":    {},
	"other-renewables": {},
	"hydro-wind":       {},
}

// IsRenewable reports whether a category counts toward the renewable share.
func IsRenewable(category string) bool {
	_, ok := RenewableCategories[category]
	return ok
}

// BalanceItem is one labeled generation/demand/interchange line.
type BalanceItem struct {
	Category   string  `json:"category"`
	ValueMW    float64 `json:"value_mw"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color,omitempty"`
	Unit       string  `json:"unit"`
}

// BalanceRecord is the canonical, store-ready representation of one grid
// balance snapshot. Identity in the store is (Timestamp, Granularity); ID is
// assigned by the persistence gateway on first save.
type BalanceRecord struct {
	ID          string            `json:"id,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Granularity Granularity       `json:"granularity"`
	Generation  []BalanceItem     `json:"generation"`
	Demand      []BalanceItem     `json:"demand"`
	Interchange []BalanceItem     `json:"interchange"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
}

// TotalGeneration sums generation values. Never returns a non-finite value.
func (r *BalanceRecord) TotalGeneration() float64 {
	return sumItems(r.Generation)
}

// TotalDemand sums demand values. Never returns a non-finite value.
func (r *BalanceRecord) TotalDemand() float64 {
	return sumItems(r.Demand)
}

// Balance is total generation minus total demand.
func (r *BalanceRecord) Balance() float64 {
	return Sanitize(r.TotalGeneration() - r.TotalDemand())
}

// RenewableShare is the renewable percentage of total generation, in
// [0, 100]. It is 0 when total generation is 0.
func (r *BalanceRecord) RenewableShare() float64 {
	total := r.TotalGeneration()
	if total == 0 {
		return 0
	}
	var renewable float64
	for _, item := range r.Generation {
		if IsRenewable(item.Category) {
			renewable += Sanitize(item.ValueMW)
		}
	}
	share := Sanitize(renewable / total * 100)
	if share < 0 {
		return 0
	}
	if share > 100 {
		return 100
	}
	return share
}

// Sanitize collapses NaN and infinities to 0 so malformed upstream values
// never propagate into the store.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func sumItems(items []BalanceItem) float64 {
	var total float64
	for _, item := range items {
		total += Sanitize(item.ValueMW)
	}
	return Sanitize(total)
}

// PlaceholderItem builds the item inserted when a required sequence would
// otherwise be empty.
func PlaceholderItem() BalanceItem {
	return BalanceItem{Category: PlaceholderCategory, ValueMW: 0, Unit: "MW"}
}

// Validate ensures basic record invariants before persistence.
func (r *BalanceRecord) Validate() error {
	if r == nil {
		return ErrNilRecord
	}
	if r.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if !r.Granularity.IsValid() {
		return ErrInvalidGranularity
	}
	return nil
}
