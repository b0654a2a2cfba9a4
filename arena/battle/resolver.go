// arena/battle/resolver.go
package battle

import (
	"hash/fnv"
	"math/rand"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// Combatant is one side of a round: the titan behind it, its HP going in,
// and the action its player locked (or defaulted to).
type Combatant struct {
	PlayerID string
	Loadout  *models.TitanLoadout
	HP       int
	Action   models.PlayedAction
}

// Outcome is the fully resolved result of one round. Damage and HPAfter are
// keyed by player ID; Damage holds damage dealt TO that player.
type Outcome struct {
	Order   []string       // player IDs in acting order
	Damage  map[string]int // damage received this round
	Healing map[string]int // HP restored this round
	HPAfter map[string]int // clamped to [0, MaxHP]
}

// Resolver turns a pair of locked actions into an Outcome. It is stateless
// and safe for concurrent use; all randomness comes from the caller's seed.
type Resolver struct {
	cfg       Config
	advantage map[models.Element]map[models.Element]float64
	items     map[string]Item
}

// NewResolver creates a Resolver over the default advantage and item tables.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{
		cfg:       cfg,
		advantage: DefaultAdvantage(),
		items:     DefaultItems(),
	}
}

// RoundSeed derives the deterministic seed for one round of one match.
// Replaying the same match ID and round number always yields the same rolls.
func RoundSeed(matchID string, round int) int64 {
	h := fnv.New64a()
	h.Write([]byte(matchID))
	h.Write([]byte{':'})
	h.Write([]byte{byte(round >> 24), byte(round >> 16), byte(round >> 8), byte(round)})
	return int64(h.Sum64())
}

// Item returns the item table entry for id, if any.
func (r *Resolver) Item(id string) (Item, bool) {
	it, ok := r.items[id]
	return it, ok
}

// ResolveRound applies both locked actions simultaneously: acting order only
// decides who rolls first, never whether the slower action lands. A titan at
// 0 HP after the faster strike still deals its own damage, so a double
// knockout is a reachable outcome.
func (r *Resolver) ResolveRound(a, b Combatant, seed int64) Outcome {
	rng := rand.New(rand.NewSource(seed))

	first, second := a, b
	if b.Loadout.Speed > a.Loadout.Speed {
		first, second = b, a
	} else if a.Loadout.Speed == b.Loadout.Speed && rng.Intn(2) == 1 {
		first, second = b, a
	}

	out := Outcome{
		Order:   []string{first.PlayerID, second.PlayerID},
		Damage:  map[string]int{a.PlayerID: 0, b.PlayerID: 0},
		Healing: map[string]int{a.PlayerID: 0, b.PlayerID: 0},
		HPAfter: map[string]int{a.PlayerID: a.HP, b.PlayerID: b.HP},
	}

	// Items and defends take effect before any damage lands this round.
	for _, c := range []Combatant{first, second} {
		if c.Action.Kind != models.ActionItem {
			continue
		}
		it, ok := r.items[c.Action.ItemID]
		if !ok {
			continue
		}
		healed := min(it.Heal, c.Loadout.MaxHP-out.HPAfter[c.PlayerID])
		if healed < 0 {
			healed = 0
		}
		out.Healing[c.PlayerID] = healed
		out.HPAfter[c.PlayerID] += healed
	}

	// Both strikes are rolled in acting order but applied unconditionally.
	pair := [2][2]Combatant{{first, second}, {second, first}}
	for _, p := range pair {
		attacker, defender := p[0], p[1]
		dmg := r.rollDamage(rng, attacker, defender)
		if dmg == 0 {
			continue
		}
		out.Damage[defender.PlayerID] += dmg
		out.HPAfter[defender.PlayerID] -= dmg
		if out.HPAfter[defender.PlayerID] < 0 {
			out.HPAfter[defender.PlayerID] = 0
		}
	}

	return out
}

func (r *Resolver) rollDamage(rng *rand.Rand, attacker, defender Combatant) int {
	var power float64
	switch attacker.Action.Kind {
	case models.ActionAttack:
		power = r.cfg.AttackPower
	case models.ActionSpecial:
		power = attacker.Loadout.Special.Power
	default:
		return 0
	}

	def := defender.Loadout.Defense
	if def < 1 {
		def = 1
	}
	dmg := float64(attacker.Loadout.Attack) * power * r.cfg.DamageScale / float64(def)
	dmg *= r.elementMultiplier(attacker.Loadout.Element, defender.Loadout.Element)
	if defender.Action.Kind == models.ActionDefend {
		dmg *= r.cfg.DefendFactor
	}
	dmg *= r.cfg.VarianceMin + rng.Float64()*(r.cfg.VarianceMax-r.cfg.VarianceMin)

	n := int(dmg)
	if n < 1 {
		n = 1
	}
	return n
}

func (r *Resolver) elementMultiplier(att, def models.Element) float64 {
	row, ok := r.advantage[att]
	if !ok {
		return 1.0
	}
	mult, ok := row[def]
	if !ok {
		return 1.0
	}
	return mult
}
