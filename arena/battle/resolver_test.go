package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// fixedConfig pins the variance roll to 1.0 so damage is exact.
func fixedConfig() Config {
	cfg := DefaultConfig()
	cfg.VarianceMin = 1.0
	cfg.VarianceMax = 1.0
	return cfg
}

func emberBruiser(playerID string) Combatant {
	return Combatant{
		PlayerID: playerID,
		Loadout: &models.TitanLoadout{
			TitanID: "pyrelord",
			Element: models.ElementEmber,
			MaxHP:   100,
			Attack:  10,
			Defense: 5,
			Speed:   5,
			Special: models.SpecialMove{Name: "Cinder Burst", Power: 2.0, Cooldown: 3},
		},
		HP:     100,
		Action: models.PlayedAction{PlayerID: playerID, Kind: models.ActionAttack},
	}
}

func emberTank(playerID string) Combatant {
	c := emberBruiser(playerID)
	c.Loadout.TitanID = "ashguard"
	c.Loadout.Attack = 6
	c.Loadout.Defense = 10
	c.Loadout.Speed = 3
	return c
}

func TestRoundSeedIsStable(t *testing.T) {
	assert.Equal(t, RoundSeed("match-1", 1), RoundSeed("match-1", 1))
	assert.NotEqual(t, RoundSeed("match-1", 1), RoundSeed("match-1", 2))
	assert.NotEqual(t, RoundSeed("match-1", 1), RoundSeed("match-2", 1))
}

func TestResolveRoundIsDeterministic(t *testing.T) {
	r := NewResolver(DefaultConfig())
	seed := RoundSeed("match-1", 4)

	first := r.ResolveRound(emberBruiser("a"), emberTank("b"), seed)
	second := r.ResolveRound(emberBruiser("a"), emberTank("b"), seed)

	assert.Equal(t, first, second)
}

func TestFasterTitanActsFirst(t *testing.T) {
	r := NewResolver(fixedConfig())

	out := r.ResolveRound(emberBruiser("fast"), emberTank("slow"), 42)
	assert.Equal(t, []string{"fast", "slow"}, out.Order)

	// Order does not depend on argument position.
	out = r.ResolveRound(emberTank("slow"), emberBruiser("fast"), 42)
	assert.Equal(t, []string{"fast", "slow"}, out.Order)
}

func TestBothActionsApplyEvenAfterKnockout(t *testing.T) {
	r := NewResolver(fixedConfig())

	a := emberBruiser("a")
	b := emberBruiser("b")
	a.HP = 1
	b.HP = 1

	out := r.ResolveRound(a, b, 7)
	assert.Equal(t, 0, out.HPAfter["a"], "slower titan still strikes back")
	assert.Equal(t, 0, out.HPAfter["b"])
}

func TestPlainAttackDamage(t *testing.T) {
	r := NewResolver(fixedConfig())

	// 10 atk * 1.0 power * 6 scale / 10 def = 6 into the tank,
	// 6 atk * 1.0 power * 6 scale / 5 def = 7 back.
	out := r.ResolveRound(emberBruiser("a"), emberTank("b"), 1)
	assert.Equal(t, 6, out.Damage["b"])
	assert.Equal(t, 7, out.Damage["a"])
	assert.Equal(t, 94, out.HPAfter["a"])
	assert.Equal(t, 94, out.HPAfter["b"])
}

func TestDefendHalvesIncomingDamage(t *testing.T) {
	r := NewResolver(fixedConfig())

	attacker := emberBruiser("a")
	defender := emberTank("b")
	defender.Action = models.PlayedAction{PlayerID: "b", Kind: models.ActionDefend}

	out := r.ResolveRound(attacker, defender, 1)
	assert.Equal(t, 3, out.Damage["b"])
	assert.Equal(t, 0, out.Damage["a"], "defending titan deals no damage")
}

func TestSpecialUsesMovePower(t *testing.T) {
	r := NewResolver(fixedConfig())

	attacker := emberBruiser("a")
	attacker.Action = models.PlayedAction{PlayerID: "a", Kind: models.ActionSpecial}

	out := r.ResolveRound(attacker, emberTank("b"), 1)
	assert.Equal(t, 12, out.Damage["b"], "special doubles the plain attack")
}

func TestElementalAdvantage(t *testing.T) {
	r := NewResolver(fixedConfig())

	attacker := emberBruiser("a")
	defender := emberTank("b")
	defender.Loadout.Element = models.ElementVerdant

	out := r.ResolveRound(attacker, defender, 1)
	assert.Equal(t, 12, out.Damage["b"], "ember strikes verdant at double strength")
	assert.Equal(t, 3, out.Damage["a"], "verdant strikes ember at half strength")
}

func TestMinimumDamageIsOne(t *testing.T) {
	r := NewResolver(fixedConfig())

	weakling := emberBruiser("a")
	weakling.Loadout.Attack = 1
	fortress := emberTank("b")
	fortress.Loadout.Defense = 1000
	fortress.Action = models.PlayedAction{PlayerID: "b", Kind: models.ActionDefend}

	out := r.ResolveRound(weakling, fortress, 1)
	assert.Equal(t, 1, out.Damage["b"])
}

func TestItemHealsBeforeDamageAndCapsAtMaxHP(t *testing.T) {
	r := NewResolver(fixedConfig())

	wounded := emberTank("a")
	wounded.HP = 40
	wounded.Action = models.PlayedAction{PlayerID: "a", Kind: models.ActionItem, ItemID: "potion"}
	attacker := emberBruiser("b")

	out := r.ResolveRound(wounded, attacker, 1)
	require.Equal(t, 20, out.Healing["a"])
	// 40 + 20 heal, then 10*6/10 = 6 incoming.
	assert.Equal(t, 54, out.HPAfter["a"])

	nearlyFull := emberTank("a")
	nearlyFull.HP = 95
	nearlyFull.Action = models.PlayedAction{PlayerID: "a", Kind: models.ActionItem, ItemID: "potion"}
	out = r.ResolveRound(nearlyFull, attacker, 1)
	assert.Equal(t, 5, out.Healing["a"], "heal never overshoots max HP")
}

func TestSpeedTieBreaksBySeed(t *testing.T) {
	r := NewResolver(DefaultConfig())

	a := emberBruiser("a")
	b := emberBruiser("b")

	seen := map[string]bool{}
	for seed := int64(0); seed < 32; seed++ {
		out := r.ResolveRound(a, b, seed)
		seen[out.Order[0]] = true
	}
	assert.True(t, seen["a"] && seen["b"], "tie break should go both ways across seeds")
}
