// arena/battle/tables.go
package battle

import "github.com/TitanForge/ARENA-SERVICES/shared/models"

// Config carries the product-tunable damage constants. Everything here is
// configuration, not an invariant; tests pin their own values.
type Config struct {
	DamageScale  float64 // Base scale applied to attack/defense ratios
	AttackPower  float64 // Power multiplier for a plain attack
	DefendFactor float64 // Incoming damage multiplier while defending
	VarianceMin  float64 // Lower bound of the seeded damage roll
	VarianceMax  float64 // Upper bound of the seeded damage roll
}

// DefaultConfig returns the live-tuned damage constants.
func DefaultConfig() Config {
	return Config{
		DamageScale:  6.0,
		AttackPower:  1.0,
		DefendFactor: 0.5,
		VarianceMin:  0.85,
		VarianceMax:  1.0,
	}
}

// Item is a single-use consumable a player may burn instead of attacking.
type Item struct {
	ID   string
	Name string
	Heal int // HP restored, capped at the titan's max
}

// DefaultItems is the fixed item table.
func DefaultItems() map[string]Item {
	return map[string]Item{
		"potion":       {ID: "potion", Name: "Restoration Potion", Heal: 20},
		"grand-potion": {ID: "grand-potion", Name: "Grand Restoration Potion", Heal: 50},
	}
}

// DefaultAdvantage is the fixed elemental advantage table. Attacker element
// first, defender second; missing pairs resolve to 1.0.
func DefaultAdvantage() map[models.Element]map[models.Element]float64 {
	return map[models.Element]map[models.Element]float64{
		models.ElementEmber: {
			models.ElementVerdant: 2.0,
			models.ElementTide:    0.5,
			models.ElementIron:    1.5,
		},
		models.ElementTide: {
			models.ElementEmber:   2.0,
			models.ElementVerdant: 0.5,
			models.ElementStorm:   0.5,
		},
		models.ElementVerdant: {
			models.ElementTide:  2.0,
			models.ElementEmber: 0.5,
			models.ElementIron:  0.5,
		},
		models.ElementStorm: {
			models.ElementTide: 2.0,
			models.ElementIron: 0.5,
		},
		models.ElementIron: {
			models.ElementStorm:   2.0,
			models.ElementEmber:   0.5,
			models.ElementVerdant: 1.5,
		},
	}
}
