// shared/models/titan.go
package models

// Element is a titan's combat element, feeding the advantage table.
type Element string

const (
	ElementEmber   Element = "EMBER"
	ElementTide    Element = "TIDE"
	ElementVerdant Element = "VERDANT"
	ElementStorm   Element = "STORM"
	ElementIron    Element = "IRON"
)

// SpecialMove is a titan's signature attack with its own power and cooldown.
type SpecialMove struct {
	Name     string  `json:"name"`
	Power    float64 `json:"power"`    // Multiplier over the base attack
	Cooldown int     `json:"cooldown"` // Rounds between uses
}

// TitanLoadout is the immutable combat stat block for one titan, as served
// by the loadout provider. The arena never mutates it.
type TitanLoadout struct {
	TitanID     string      `json:"titanId"`
	Name        string      `json:"name"`
	Element     Element     `json:"element"`
	ThreatClass string      `json:"threatClass"`
	MaxHP       int         `json:"maxHp"`
	Attack      int         `json:"attack"`
	Defense     int         `json:"defense"`
	Speed       int         `json:"speed"`
	Special     SpecialMove `json:"special"`
}
