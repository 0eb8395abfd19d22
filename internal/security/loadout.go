package security

import (
	"fmt"
	"sync"
)

// Loadout is a safe's ordered, fixed-size set of security modules plus a
// cached effective score.
//
// The cache is an invariant, not an optimization knob: every mutation goes
// through SetModule, which recomputes the score under the same lock before
// anyone can observe the new modules. There is no raw setter.
type Loadout struct {
	mu             sync.RWMutex
	modules        []Module
	effectiveScore float64
	calc           *Calculator
}

// NewLoadout builds a loadout from exactly MaxModules modules and computes
// its initial effective score. Fewer or invalid modules fail fast.
func NewLoadout(calc *Calculator, modules ...Module) (*Loadout, error) {
	for i, m := range modules {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%w: slot %d: %v", ErrInvalidLoadout, i, err)
		}
	}
	l := &Loadout{calc: calc, modules: make([]Module, len(modules))}
	copy(l.modules, modules)
	score, err := calc.scoreModules(l.modules)
	if err != nil {
		return nil, err
	}
	l.effectiveScore = score
	return l, nil
}

// Modules returns a copy of the configured modules in order.
func (l *Loadout) Modules() []Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Module, len(l.modules))
	copy(out, l.modules)
	return out
}

// Module returns the module in the given slot.
func (l *Loadout) Module(slot int) (Module, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if slot < 0 || slot >= len(l.modules) {
		return Module{}, fmt.Errorf("%w: slot %d out of range", ErrInvalidLoadout, slot)
	}
	return l.modules[slot], nil
}

// Len returns the number of module slots.
func (l *Loadout) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.modules)
}

// EffectiveScore returns the cached security score. It always equals the
// recomputation over the current modules.
func (l *Loadout) EffectiveScore() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.effectiveScore
}

// SetModule replaces the module in a slot and recomputes the effective
// score atomically. On any validation failure the loadout is unchanged.
func (l *Loadout) SetModule(slot int, m Module) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if slot < 0 || slot >= len(l.modules) {
		return fmt.Errorf("%w: slot %d out of range", ErrInvalidLoadout, slot)
	}
	if err := m.Validate(); err != nil {
		return err
	}

	previous := l.modules[slot]
	l.modules[slot] = m

	score, err := l.calc.scoreModules(l.modules)
	if err != nil {
		l.modules[slot] = previous
		return err
	}
	l.effectiveScore = score
	return nil
}
