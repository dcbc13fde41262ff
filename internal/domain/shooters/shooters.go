// Package shooters loads the read-only reference table of professional
// shooters used by similarity matching.
package shooters

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed shooters.toml
var embeddedTable []byte

// Profile is one professional shooter.
type Profile struct {
	Name           string             `toml:"name" json:"name"`
	Team           string             `toml:"team" json:"team"`
	Position       string             `toml:"position" json:"position"`
	HeightInches   float64            `toml:"height_inches" json:"height_inches"`
	WingspanInches float64            `toml:"wingspan_inches" json:"wingspan_inches"`
	IdealAngles    map[string]float64 `toml:"ideal_angles" json:"ideal_angles"`
	Career3PtPct   float64            `toml:"career_3pt_pct" json:"career_3pt_pct"`
	ShootingStyle  string             `toml:"shooting_style" json:"shooting_style"`
}

// WingspanRatio returns wingspan over height.
func (p Profile) WingspanRatio() float64 {
	if p.HeightInches <= 0 {
		return 0
	}
	return p.WingspanInches / p.HeightInches
}

func (p Profile) clone() Profile {
	angles := make(map[string]float64, len(p.IdealAngles))
	for k, v := range p.IdealAngles {
		angles[k] = v
	}
	p.IdealAngles = angles
	return p
}

type document struct {
	Shooters []Profile `toml:"shooter"`
}

// Table is an immutable set of profiles, sorted by name. Safe for concurrent use.
type Table struct {
	profiles []Profile
	byName   map[string]int
}

// Default returns the embedded table.
func Default() (*Table, error) {
	return Parse(embeddedTable)
}

// LoadFile reads a table from a TOML file on disk.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shooters file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a table from r.
func Load(r io.Reader) (*Table, error) {
	var doc document
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	return build(doc.Shooters)
}

// Parse decodes a table from raw TOML.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	return build(doc.Shooters)
}

func build(list []Profile) (*Table, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no shooters", ErrInvalidTable)
	}
	t := &Table{profiles: make([]Profile, 0, len(list)), byName: make(map[string]int, len(list))}
	for _, p := range list {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("%w: shooter without a name", ErrInvalidTable)
		}
		if p.HeightInches <= 0 {
			return nil, fmt.Errorf("%w: %s: height_inches must be positive", ErrInvalidTable, p.Name)
		}
		if _, dup := t.byName[strings.ToLower(p.Name)]; dup {
			return nil, fmt.Errorf("%w: duplicate shooter %q", ErrInvalidTable, p.Name)
		}
		t.byName[strings.ToLower(p.Name)] = -1
		t.profiles = append(t.profiles, p.clone())
	}
	sort.Slice(t.profiles, func(i, j int) bool { return t.profiles[i].Name < t.profiles[j].Name })
	for i, p := range t.profiles {
		t.byName[strings.ToLower(p.Name)] = i
	}
	return t, nil
}

// Len returns the number of shooters.
func (t *Table) Len() int { return len(t.profiles) }

// All returns copies of every profile, sorted by name.
func (t *Table) All() []Profile {
	out := make([]Profile, len(t.profiles))
	for i, p := range t.profiles {
		out[i] = p.clone()
	}
	return out
}

// Get looks a shooter up by name, case-insensitively.
func (t *Table) Get(name string) (Profile, bool) {
	i, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, false
	}
	return t.profiles[i].clone(), true
}

// Each calls fn for each profile in name order without copying. fn must not
// retain or modify the IdealAngles map.
func (t *Table) Each(fn func(Profile)) {
	for _, p := range t.profiles {
		fn(p)
	}
}
