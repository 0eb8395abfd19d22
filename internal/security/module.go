// Package security turns a safe's module configuration into defensive
// strength, and defensive strength into attacker success probability.
//
// Everything here is pure: scores and probabilities are functions of their
// arguments and the tuning table, nothing else.
package security

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownModuleType = errors.New("security: unknown module type")
	ErrInvalidDifficulty = errors.New("security: difficulty must be in [0,1]")
	ErrInvalidLoadout    = errors.New("security: invalid loadout")
)

// ModuleType identifies a kind of security module. Each type maps to a
// mini-game on the client; the engine only cares about its tuning row.
type ModuleType string

const (
	TypePatternLock ModuleType = "pattern_lock"
	TypeLaserGrid   ModuleType = "laser_grid"
	TypeTimeLock    ModuleType = "time_lock"
	TypeKeypad      ModuleType = "keypad"
	TypeGuardDog    ModuleType = "guard_dog"
)

// ModuleSpec is the per-type tuning row.
type ModuleSpec struct {
	Type        ModuleType
	DisplayName string
	// HardnessConstant is the exponent rate in the strength curve. Higher
	// values reward committing to difficult configurations more steeply.
	HardnessConstant float64
	// BaseWeight is the type's relative importance in score aggregation.
	BaseWeight float64
}

// Catalog maps every known module type to its tuning row.
var Catalog = map[ModuleType]ModuleSpec{
	TypePatternLock: {Type: TypePatternLock, DisplayName: "Pattern Lock", HardnessConstant: 2.5, BaseWeight: 1.0},
	TypeLaserGrid:   {Type: TypeLaserGrid, DisplayName: "Laser Grid", HardnessConstant: 2.2, BaseWeight: 1.0},
	TypeTimeLock:    {Type: TypeTimeLock, DisplayName: "Time Lock", HardnessConstant: 2.0, BaseWeight: 1.0},
	TypeKeypad:      {Type: TypeKeypad, DisplayName: "Keypad Cipher", HardnessConstant: 2.35, BaseWeight: 0.9},
	TypeGuardDog:    {Type: TypeGuardDog, DisplayName: "Guard Dog", HardnessConstant: 1.9, BaseWeight: 1.2},
}

// AllTypes returns the known module types in a stable order.
func AllTypes() []ModuleType {
	return []ModuleType{TypePatternLock, TypeLaserGrid, TypeTimeLock, TypeKeypad, TypeGuardDog}
}

// Module is one configured security module in a loadout.
type Module struct {
	ID         string     `json:"id"`
	Type       ModuleType `json:"type"`
	Difficulty float64    `json:"difficulty"` // [0,1]
	Weight     float64    `json:"weight"`     // defaults to the type's BaseWeight
}

// Spec returns the catalog row for the module's type.
func (m Module) Spec() (ModuleSpec, error) {
	spec, ok := Catalog[m.Type]
	if !ok {
		return ModuleSpec{}, fmt.Errorf("%w: %q", ErrUnknownModuleType, m.Type)
	}
	return spec, nil
}

// Validate checks the module configuration. Failures are programmer errors,
// not runtime conditions to recover from silently.
func (m Module) Validate() error {
	if _, err := m.Spec(); err != nil {
		return err
	}
	if m.Difficulty < 0 || m.Difficulty > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidDifficulty, m.Difficulty)
	}
	if m.Weight < 0 {
		return fmt.Errorf("security: weight cannot be negative, got %v", m.Weight)
	}
	return nil
}

// NewModule creates a module of the given type at the given difficulty,
// using the type's base weight.
func NewModule(id string, t ModuleType, difficulty float64) (Module, error) {
	spec, ok := Catalog[t]
	if !ok {
		return Module{}, fmt.Errorf("%w: %q", ErrUnknownModuleType, t)
	}
	m := Module{ID: id, Type: t, Difficulty: difficulty, Weight: spec.BaseWeight}
	if err := m.Validate(); err != nil {
		return Module{}, err
	}
	return m, nil
}
