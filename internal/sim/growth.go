package sim

import (
	"stepsim/internal/randx"
)

// growGeneration advances the registry by exactly one discrete generation.
//
// For each lineage the expected number of replications is count*fitness
// (fitness 1.0 doubles the lineage). The fractional remainder is resolved
// by a single Bernoulli draw so counts stay exact integers with the right
// expectation. Mutation events are then drawn per category as Poisson
// counts proportional to the replications the lineage contributed; each
// event carves one individual out of the lineage into a new child lineage.
//
// New mutations are registered with meta when it is non-nil.
//
// Returns the number of clamp events recorded by the mutation model.
func growGeneration(reg *Registry, model *MutationModel, rates [3]float64, src *randx.Source, meta *Metagenome) (int64, error) {
	var clampEvents int64

	// Children are appended during iteration; only the pre-existing
	// lineages replicate or mutate this generation.
	existing := len(reg.lineages)
	for i := 0; i < existing; i++ {
		parent := reg.lineages[i]
		if parent.Count <= 0 {
			continue
		}

		expected := float64(parent.Count) * parent.Fitness
		replications := int64(expected)
		if frac := expected - float64(replications); frac > 0 && src.Bernoulli(frac) {
			replications++
		}

		newCount := parent.Count + replications
		reg.total += replications

		for _, cat := range categories {
			rate := rates[cat]
			if rate <= 0 || replications <= 0 {
				continue
			}
			events := src.Poisson(rate * float64(replications))
			if events > newCount {
				// Cannot split away more individuals than exist.
				events = newCount
			}
			for e := int64(0); e < events; e++ {
				child, clamped := model.Spawn(reg.lineages[i], cat, src)
				if clamped {
					clampEvents++
				}
				newCount--
				child.ID = reg.push(child)
				reg.total-- // the child individual came out of newCount
				if meta != nil {
					meta.Register(child, reg.lineages[i])
				}
			}
		}

		reg.lineages[i].Count = newCount
	}

	reg.compact()
	if err := reg.checkConsistency(); err != nil {
		return clampEvents, err
	}
	return clampEvents, nil
}
