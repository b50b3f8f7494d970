// Package content supplies the rosters and maps matches are built from.
// The engine treats these as data; swapping in new content must not
// require engine changes.
package content

import (
	"errors"
	"fmt"

	"github.com/mpetrov/fogline/pkg/stratego"
)

var (
	ErrUnknownRoster = errors.New("unknown roster")
	ErrUnknownMap    = errors.New("unknown map")
)

// Provider resolves roster and map IDs to their definitions.
type Provider interface {
	Roster(id string) (*stratego.Roster, error)
	Map(id string) (*stratego.MapDef, error)
	Rosters() []*stratego.Roster
	Maps() []*stratego.MapDef
}

// StaticProvider serves the built-in content set.
type StaticProvider struct {
	rosters map[string]*stratego.Roster
	maps    map[string]*stratego.MapDef
	// insertion order for stable listings
	rosterIDs []string
	mapIDs    []string
}

// NewStaticProvider builds a provider over the built-in rosters and maps.
func NewStaticProvider() *StaticProvider {
	p := &StaticProvider{
		rosters: make(map[string]*stratego.Roster),
		maps:    make(map[string]*stratego.MapDef),
	}
	for _, r := range []*stratego.Roster{stratego.ClassicRoster(), stratego.VanguardRoster()} {
		p.rosters[r.ID] = r
		p.rosterIDs = append(p.rosterIDs, r.ID)
	}
	for _, m := range []*stratego.MapDef{stratego.ClassicMap(), stratego.HighlandMap()} {
		p.maps[m.ID] = m
		p.mapIDs = append(p.mapIDs, m.ID)
	}
	return p
}

// DefaultMapID is used when a match is created without an explicit map.
func (p *StaticProvider) DefaultMapID() string { return p.mapIDs[0] }

// DefaultRosterID is used when a player never picks an army.
func (p *StaticProvider) DefaultRosterID() string { return p.rosterIDs[0] }

func (p *StaticProvider) Roster(id string) (*stratego.Roster, error) {
	r, ok := p.rosters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoster, id)
	}
	return r, nil
}

func (p *StaticProvider) Map(id string) (*stratego.MapDef, error) {
	m, ok := p.maps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMap, id)
	}
	return m, nil
}

func (p *StaticProvider) Rosters() []*stratego.Roster {
	out := make([]*stratego.Roster, 0, len(p.rosterIDs))
	for _, id := range p.rosterIDs {
		out = append(out, p.rosters[id])
	}
	return out
}

func (p *StaticProvider) Maps() []*stratego.MapDef {
	out := make([]*stratego.MapDef, 0, len(p.mapIDs))
	for _, id := range p.mapIDs {
		out = append(out, p.maps[id])
	}
	return out
}
