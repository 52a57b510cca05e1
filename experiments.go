package agentkit

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
)

type variant struct {
	agent  string
	weight float64
}

// experiments maps a public agent name to weighted variant agents.
type experiments struct {
	mu     sync.RWMutex
	byName map[string][]variant
	random func() float64
}

func newExperiments(random func() float64) *experiments {
	if random == nil {
		random = rand.Float64
	}
	return &experiments{byName: map[string][]variant{}, random: random}
}

func (e *experiments) register(name string, weights map[string]float64) error {
	var total float64
	vs := make([]variant, 0, len(weights))
	for agent, w := range weights {
		if w < 0 {
			return fmt.Errorf("experiment %q: negative weight for %q", name, agent)
		}
		if w == 0 {
			continue
		}
		total += w
		vs = append(vs, variant{agent: agent, weight: w})
	}
	if total == 0 {
		return fmt.Errorf("experiment %q: no variant with positive weight", name)
	}
	// Sorted by agent name so a draw maps to the same variant every time.
	slices.SortFunc(vs, func(a, b variant) int {
		switch {
		case a.agent < b.agent:
			return -1
		case a.agent > b.agent:
			return 1
		}
		return 0
	})
	for i := range vs {
		vs[i].weight /= total
	}

	e.mu.Lock()
	e.byName[name] = vs
	e.mu.Unlock()
	return nil
}

func (e *experiments) remove(name string) {
	e.mu.Lock()
	delete(e.byName, name)
	e.mu.Unlock()
}

// pick returns the agent to run for name and whether it is an experiment
// variant.
func (e *experiments) pick(name string) (string, bool) {
	e.mu.RLock()
	vs, ok := e.byName[name]
	e.mu.RUnlock()
	if !ok {
		return name, false
	}
	r := e.random()
	for _, v := range vs {
		if r < v.weight {
			return v.agent, true
		}
		r -= v.weight
	}
	return vs[len(vs)-1].agent, true
}

// RegisterExperiment routes invocations of name to one of the variant
// agents, drawn with the given relative weights.
func (k *Kit) RegisterExperiment(name string, variants map[string]float64) error {
	if err := k.experiments.register(name, variants); err != nil {
		return err
	}
	k.logger.Info("agentkit.experiment.registered", "experiment", name, "variants", len(variants))
	return nil
}

// RemoveExperiment stops routing name to variants.
func (k *Kit) RemoveExperiment(name string) { k.experiments.remove(name) }
