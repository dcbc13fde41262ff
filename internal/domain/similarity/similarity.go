// Package similarity ranks professional shooters by how closely they resemble
// a user's body proportions and measured shooting angles.
package similarity

import (
	"math"
	"sort"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/profile"
	"github.com/okian/shotlab/internal/domain/shooters"
)

// MaxMatches is the hard cap on returned matches.
const MaxMatches = 5

// Term names used in Match.Components.
const (
	TermHeight   = "height"
	TermWingspan = "wingspan_ratio"
)

// Term weights and scales. Angle terms share angleWeight equally.
const (
	heightWeight   = 0.35
	heightScale    = 12.0
	wingspanWeight = 0.25
	wingspanScale  = 0.10
	angleWeight    = 0.40
	angleScale     = 30.0
)

// Match is one ranked shooter. Components holds the per-term similarity in [0,1].
type Match struct {
	ShooterName   string             `json:"shooter_name"`
	Team          string             `json:"team,omitempty"`
	Position      string             `json:"position,omitempty"`
	ShootingStyle string             `json:"shooting_style,omitempty"`
	Score         float64            `json:"score"`
	Components    map[string]float64 `json:"components"`
}

// Clone returns a deep copy of m.
func (m Match) Clone() Match {
	c := make(map[string]float64, len(m.Components))
	for k, v := range m.Components {
		c[k] = v
	}
	m.Components = c
	return m
}

// Matcher scores a profile against a shared read-only table.
type Matcher struct {
	table *shooters.Table
	topN  int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithTopN caps the number of matches, clamped to [1, MaxMatches].
func WithTopN(n int) Option {
	return func(m *Matcher) {
		m.topN = max(1, min(n, MaxMatches))
	}
}

// NewMatcher creates a Matcher over table.
func NewMatcher(table *shooters.Table, opts ...Option) *Matcher {
	m := &Matcher{table: table, topN: MaxMatches}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns the closest shooters sorted by score descending, ties by name
// ascending. A nil profile yields an empty list.
func (m *Matcher) Match(p *profile.UserProfile, ms []angles.Measurement) []Match {
	out := []Match{}
	if p == nil || m.table == nil {
		return out
	}

	userRatio, hasRatio := p.WingspanRatio()
	m.table.Each(func(s shooters.Profile) {
		out = append(out, score(p.HeightInches, userRatio, hasRatio, s, ms))
	})

	Sort(out)
	if len(out) > m.topN {
		out = out[:m.topN]
	}
	return out
}

// Sort orders matches by score descending, then name ascending.
func Sort(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Score != ms[j].Score {
			return ms[i].Score > ms[j].Score
		}
		return ms[i].ShooterName < ms[j].ShooterName
	})
}

func score(height, ratio float64, hasRatio bool, s shooters.Profile, ms []angles.Measurement) Match {
	type term struct {
		name   string
		weight float64
		sim    float64
	}
	terms := []term{{TermHeight, heightWeight, closeness(height-s.HeightInches, heightScale)}}

	if sr := s.WingspanRatio(); hasRatio && s.WingspanInches > 0 {
		terms = append(terms, term{TermWingspan, wingspanWeight, closeness(ratio-sr, wingspanScale)})
	}

	type angleTerm struct {
		name string
		sim  float64
	}
	var shared []angleTerm
	for _, n := range angles.Names() {
		v, ok := angles.ValueOf(ms, n)
		if !ok {
			continue
		}
		ideal, ok := s.IdealAngles[string(n)]
		if !ok {
			continue
		}
		shared = append(shared, angleTerm{string(n), closeness(v-ideal, angleScale)})
	}
	for _, a := range shared {
		terms = append(terms, term{a.name, angleWeight / float64(len(shared)), a.sim})
	}

	var num, den float64
	components := make(map[string]float64, len(terms))
	for _, t := range terms {
		num += t.weight * t.sim
		den += t.weight
		components[t.name] = t.sim
	}

	return Match{
		ShooterName:   s.Name,
		Team:          s.Team,
		Position:      s.Position,
		ShootingStyle: s.ShootingStyle,
		Score:         100 * num / den,
		Components:    components,
	}
}

func closeness(delta, scale float64) float64 {
	return math.Max(0, 1-math.Abs(delta)/scale)
}
