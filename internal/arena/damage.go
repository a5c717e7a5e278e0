package arena

import "math"

// DamageType selects how a hit interacts with the target's defenses.
type DamageType string

const (
	DamagePhysical DamageType = "physical"
	DamageMagical  DamageType = "magical"
	DamageHybrid   DamageType = "hybrid"
)

// DamageStrategy turns an ability's raw damage into the amount actually
// applied, given both stat blocks. Strategies are pure.
type DamageStrategy interface {
	Mitigate(raw float64, attacker, target Stats) float64
}

// DamageStrategyFunc adapts a function to DamageStrategy.
type DamageStrategyFunc func(raw float64, attacker, target Stats) float64

// Mitigate invokes the function.
func (f DamageStrategyFunc) Mitigate(raw float64, attacker, target Stats) float64 {
	return f(raw, attacker, target)
}

const (
	// attackScalarCoeff and attackScalarDecay shape the diminishing-returns
	// curve that converts power into a damage multiplier.
	attackScalarCoeff = 0.6
	attackScalarDecay = 0.95

	// mitigationCeiling caps how much of a hit defenses can absorb;
	// mitigationDecay shapes the diminishing returns on stacked defense.
	mitigationCeiling = 0.75
	mitigationDecay   = 0.97
)

func attackScalar(power float64) float64 {
	if power < 0 {
		power = 0
	}
	scaled := 1 + attackScalarCoeff*(1-math.Pow(attackScalarDecay, power))
	return clamp(scaled, 0.1, 10)
}

func mitigationFactor(defense float64) float64 {
	if defense < 0 {
		defense = 0
	}
	absorbed := mitigationCeiling * (1 - math.Pow(mitigationDecay, defense))
	return 1 - absorbed
}

// DefaultStrategies builds the registry for the three damage types. Hybrid
// splits the raw amount evenly and runs each half through its own pipeline.
func DefaultStrategies() map[DamageType]DamageStrategy {
	physical := DamageStrategyFunc(func(raw float64, attacker, target Stats) float64 {
		return raw * attackScalar(attacker.AttackPower) * mitigationFactor(target.Armor)
	})
	magical := DamageStrategyFunc(func(raw float64, attacker, target Stats) float64 {
		return raw * attackScalar(attacker.SpellPower) * mitigationFactor(target.Ward)
	})
	return map[DamageType]DamageStrategy{
		DamagePhysical: physical,
		DamageMagical:  magical,
		DamageHybrid: DamageStrategyFunc(func(raw float64, attacker, target Stats) float64 {
			half := raw / 2
			return physical.Mitigate(half, attacker, target) + magical.Mitigate(half, attacker, target)
		}),
	}
}
