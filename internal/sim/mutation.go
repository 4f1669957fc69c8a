package sim

import (
	"stepsim/internal/randx"
)

// Category classifies a mutation by the sign of its fitness effect.
type Category int

const (
	CategoryBeneficial Category = iota
	CategoryNeutral
	CategoryDeleterious
)

func (c Category) String() string {
	switch c {
	case CategoryBeneficial:
		return "beneficial"
	case CategoryNeutral:
		return "neutral"
	case CategoryDeleterious:
		return "deleterious"
	default:
		return "unknown"
	}
}

// categories is the fixed draw order for per-category mutation generation.
var categories = [...]Category{CategoryBeneficial, CategoryNeutral, CategoryDeleterious}

// MutationModel scores new mutations and combines them with the genetic
// background they arise on. It is stateless beyond the random draws it
// consumes; diagnostics counters live on the driver.
type MutationModel struct {
	// BeneficialMeanEffect is the mean of the exponential effect-size
	// distribution for beneficial mutations on the ancestral background.
	BeneficialMeanEffect float64
	// DeleteriousMin and DeleteriousMax bound the uniform fitness
	// reduction drawn for deleterious mutations.
	DeleteriousMin float64
	DeleteriousMax float64
	// EpistasisStrength controls diminishing returns: after a beneficial
	// effect s, the background's inverse mean effect is scaled by
	// 1 + EpistasisStrength*s, shrinking future beneficial effects.
	EpistasisStrength float64
	// FitnessFloor is the lowest fitness a deleterious mutation may leave
	// a lineage with. Hitting it is recorded, not silently absorbed.
	FitnessFloor float64
}

// Spawn derives a count-1 child lineage from parent by applying one
// mutation of the given category. The second return reports whether the
// fitness floor clamp fired.
func (m *MutationModel) Spawn(parent Lineage, cat Category, src *randx.Source) (Lineage, bool) {
	child := parent
	child.Count = 1
	child.ParentID = parent.ID
	child.Mutations = parent.Mutations + 1

	clamped := false
	switch cat {
	case CategoryBeneficial:
		effect := src.Exponential(1.0 / parent.InvMeanEffect)
		child.Fitness = parent.Fitness * (1.0 + effect)
		child.InvMeanEffect = parent.InvMeanEffect * (1.0 + m.EpistasisStrength*effect)
	case CategoryNeutral:
		// Effect is zero; only the mutation count changes.
	case CategoryDeleterious:
		reduction := src.Uniform(m.DeleteriousMin, m.DeleteriousMax)
		child.Fitness = parent.Fitness * (1.0 - reduction)
		if child.Fitness < m.FitnessFloor {
			child.Fitness = m.FitnessFloor
			clamped = true
		}
	}
	return child, clamped
}
