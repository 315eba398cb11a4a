package factory

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownDetector is returned by Create for a name nobody registered.
var ErrUnknownDetector = errors.New("unknown detector")

// Deps carries the shared services a detector may read.
type Deps struct {
	Rates model.RateSource
}

// DetectorFactory builds one detector from the detection config.
type DetectorFactory func(cfg *config.DetectionConfig, deps Deps) (model.Detector, error)

// registry holds the mapping of detector names to their factory functions.
var registry = make(map[string]DetectorFactory)

// RegisterDetector registers a detector type with its factory function.
// It is meant to be called from init and panics on duplicate names.
func RegisterDetector(name string, factory DetectorFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("detector type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered returns the registered detector names, sorted.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the detectors listed in cfg.Detectors, preserving their order.
func Create(cfg *config.DetectionConfig, deps Deps) ([]model.Detector, error) {
	detectors := make([]model.Detector, 0, len(cfg.Detectors))

	for _, name := range cfg.Detectors {
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownDetector, name)
		}

		d, err := factory(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("error creating detector '%s': %w", name, err)
		}
		detectors = append(detectors, d)
	}

	return detectors, nil
}
