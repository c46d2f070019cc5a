// Package region holds the static region catalog and decides which regions a user may enter.
package region

import (
	"errors"
	"fmt"
)

// Region is a themed area on the quest map. Regions are static configuration loaded once.
type Region struct {
	ID                string `json:"id" yaml:"id" toml:"id" validate:"required"`
	Name              string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Color             string `json:"color" yaml:"color" toml:"color"`
	Icon              string `json:"icon" yaml:"icon" toml:"icon"`
	Description       string `json:"description" yaml:"description" toml:"description"`
	UnlockRequirement string `json:"unlockRequirement,omitempty" yaml:"unlock_requirement" toml:"unlock_requirement"`
}

// ProgressView is the read side of a user's progress map as seen by the unlock evaluator.
type ProgressView interface {
	Completed(regionID string) bool
	Fraction(regionID string) float64
}

// Status is the map screen view of a single region for one user.
type Status struct {
	Region   Region  `json:"region"`
	Unlocked bool    `json:"unlocked"`
	Complete bool    `json:"completed"`
	Progress float64 `json:"progress"`
	// LockedBy names the prerequisite region when the region is locked.
	LockedBy string `json:"lockedBy,omitempty"`
}

var (
	// ErrUnknownRegion indicates a lookup for a region that is not in the catalog.
	ErrUnknownRegion = errors.New("unknown region")
	// ErrDependencyCycle indicates unlock requirements that loop back on themselves.
	ErrDependencyCycle = errors.New("region unlock requirements form a cycle")
	// ErrInvalidCatalog indicates malformed catalog data.
	ErrInvalidCatalog = errors.New("invalid region catalog")
)

// ConfigurationError signals malformed static region data. It should never surface in production.
type ConfigurationError struct {
	Region string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("region configuration: %v", e.Err)
	}
	return fmt.Sprintf("region configuration %q: %v", e.Region, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(regionID string, err error) error {
	return &ConfigurationError{Region: regionID, Err: err}
}
