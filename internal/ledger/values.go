package ledger

import "maps"

// RichThreshold is the total value above which a request needs negotiation.
const RichThreshold = 20

// UnknownValue is the value of items missing from the table.
const UnknownValue = 1

// DefaultValues prices items in iron-ingot equivalents.
var DefaultValues = map[string]int{
	"diamond":                10,
	"iron_ingot":             1,
	"gold_ingot":             3,
	"emerald":                8,
	"netherite_ingot":        50,
	"coal":                   0,
	"cobblestone":            0,
	"oak_log":                0,
	"bread":                  0,
	"cooked_porkchop":        1,
	"enchanted_golden_apple": 100,
	"elytra":                 200,
	"totem_of_undying":       80,
	"redstone":               0,
}

// Values is an item price table.
type Values map[string]int

// NewValues returns the default table with overrides applied.
func NewValues(overrides map[string]int) Values {
	v := maps.Clone(DefaultValues)
	maps.Copy(v, overrides)
	return v
}

// Of returns the value of one unit of item.
func (v Values) Of(item string) int {
	if n, ok := v[item]; ok {
		return n
	}
	return UnknownValue
}

// known returns the value of item, or 0 when it is not in the table.
func (v Values) known(item string) int {
	return v[item]
}
