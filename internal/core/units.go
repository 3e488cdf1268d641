package core

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"inventorycore/pkg/domain"
)

// UnitStore is an in-process unit registry implementing domain.UnitRegistry.
// It reports Loaded only after a unit table has been installed.
type UnitStore struct {
	mu     sync.RWMutex
	units  map[int]domain.Unit
	loaded bool
}

// NewUnitStore returns an empty, not yet loaded registry.
func NewUnitStore() *UnitStore {
	return &UnitStore{units: make(map[int]domain.Unit)}
}

// NewDefaultUnitStore returns a registry loaded with DefaultUnits.
func NewDefaultUnitStore() *UnitStore {
	s := NewUnitStore()
	mustApply("load default units", s.Load(DefaultUnits()))
	return s
}

func unit(id int, label string, category domain.UnitCategory, scale string, description string) domain.Unit {
	u := domain.Unit{ID: id, Label: label, Category: category, Description: description}
	if scale != "" {
		u.Scale = decimal.RequireFromString(scale)
	}
	return u
}

// DefaultUnits is the built-in unit table. Temperatures carry no scale
// because they are offset scales and never convert.
func DefaultUnits() []domain.Unit {
	return []domain.Unit{
		unit(1, "items", domain.CategoryDimensionless, "1", "items"),
		unit(2, "µl", domain.CategoryVolume, "0.000001", "microlitre"),
		unit(3, "ml", domain.CategoryVolume, "0.001", "millilitre"),
		unit(4, "l", domain.CategoryVolume, "1", "litre"),
		unit(5, "µg", domain.CategoryMass, "0.000001", "microgram"),
		unit(6, "mg", domain.CategoryMass, "0.001", "milligram"),
		unit(7, "g", domain.CategoryMass, "1", "gram"),
		unit(8, "°C", domain.CategoryTemperature, "", "celsius"),
		unit(9, "K", domain.CategoryTemperature, "", "kelvin"),
		unit(10, "°F", domain.CategoryTemperature, "", "fahrenheit"),
		unit(11, "nmol/l", domain.CategoryMolarity, "0.000000001", "nanomolar"),
		unit(12, "µmol/l", domain.CategoryMolarity, "0.000001", "micromolar"),
		unit(13, "mmol/l", domain.CategoryMolarity, "0.001", "millimolar"),
		unit(14, "mol/l", domain.CategoryMolarity, "1", "molar"),
		unit(15, "kg", domain.CategoryMass, "1000", "kilogram"),
	}
}

var knownCategories = map[domain.UnitCategory]struct{}{
	domain.CategoryDimensionless: {},
	domain.CategoryVolume:        {},
	domain.CategoryMass:          {},
	domain.CategoryTemperature:   {},
	domain.CategoryMolarity:      {},
}

// Load replaces the registry contents with units and marks it loaded. The
// whole table is rejected when any unit is invalid.
func (s *UnitStore) Load(units []domain.Unit) error {
	next := make(map[int]domain.Unit, len(units))
	for _, u := range units {
		if u.ID <= 0 {
			return errors.Errorf("unit %q: id must be positive", u.Label)
		}
		if strings.TrimSpace(u.Label) == "" {
			return errors.Errorf("unit %d: label required", u.ID)
		}
		if _, ok := knownCategories[u.Category]; !ok {
			return errors.Errorf("unit %d: unknown category %q", u.ID, u.Category)
		}
		if u.Scale.IsNegative() {
			return errors.Errorf("unit %d: negative scale", u.ID)
		}
		if _, dup := next[u.ID]; dup {
			return errors.Errorf("unit %d: duplicate id", u.ID)
		}
		next[u.ID] = u
	}
	s.mu.Lock()
	s.units = next
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// LoadJSON loads a JSON array of units.
func (s *UnitStore) LoadJSON(r io.Reader) error {
	var units []domain.Unit
	if err := json.NewDecoder(r).Decode(&units); err != nil {
		return errors.Wrap(err, "decode units")
	}
	return s.Load(units)
}

// LoadFile loads a JSON unit table from path.
func (s *UnitStore) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open units file")
	}
	defer func() { _ = f.Close() }()
	return errors.Wrap(s.LoadJSON(f), path)
}

// Unit implements domain.UnitRegistry.
func (s *UnitStore) Unit(id int) (domain.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	return u, ok
}

// Loaded implements domain.UnitRegistry.
func (s *UnitStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Units returns the registered units ordered by id.
func (s *UnitStore) Units() []domain.Unit {
	s.mu.RLock()
	out := make([]domain.Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func mustApply(label string, err error) {
	if err != nil {
		panic(errors.Wrap(err, label))
	}
}
