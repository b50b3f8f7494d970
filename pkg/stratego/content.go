package stratego

// UnitDef is one roster entry: a piece type and how many copies a side
// fields. This is the semantic contract with external content packs; the
// engine never reads content files itself.
type UnitDef struct {
	Type      string        `json:"type"`
	Rank      int           `json:"rank"`
	Count     int           `json:"count"`
	Moveable  bool          `json:"moveable"`
	Class     Class         `json:"class"`
	Abilities []AbilitySpec `json:"abilities,omitempty"`
}

// Roster is an ordered army definition.
type Roster struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Units []UnitDef `json:"units"`
}

// Unit returns the roster entry for a piece type.
func (r *Roster) Unit(pieceType string) (UnitDef, bool) {
	for _, u := range r.Units {
		if u.Type == pieceType {
			return u, true
		}
	}
	return UnitDef{}, false
}

// TotalCount is the full army size before any terrain reduction.
func (r *Roster) TotalCount() int {
	total := 0
	for _, u := range r.Units {
		total += u.Count
	}
	return total
}

// MapDef describes a board layout: size, impassable water, elevated
// ridges, and the rows each side may set up in.
type MapDef struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Water     []Coord        `json:"water,omitempty"`
	Ridges    []Coord        `json:"ridges,omitempty"`
	SetupRows map[Side][]int `json:"setup_rows"`
}

// IsWater reports whether c is an impassable cell.
func (m *MapDef) IsWater(c Coord) bool {
	for _, w := range m.Water {
		if w == c {
			return true
		}
	}
	return false
}

// InSetupRows reports whether c lies in side's setup rows.
func (m *MapDef) InSetupRows(side Side, c Coord) bool {
	for _, row := range m.SetupRows[side] {
		if c.Y == row {
			return true
		}
	}
	return false
}

// SetupCells returns all placeable (non-water) cells in side's setup rows,
// in row-major order.
func (m *MapDef) SetupCells(side Side) []Coord {
	var cells []Coord
	for _, row := range m.SetupRows[side] {
		for x := 0; x < m.Width; x++ {
			c := Coord{x, row}
			if !m.IsWater(c) {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

// ImpassableSetupCells counts water cells inside side's setup rows. Each
// such cell shrinks the side's army by one piece.
func (m *MapDef) ImpassableSetupCells(side Side) int {
	count := 0
	for _, row := range m.SetupRows[side] {
		for x := 0; x < m.Width; x++ {
			if m.IsWater(Coord{x, row}) {
				count++
			}
		}
	}
	return count
}

// ArmySize returns the number of pieces side fields on this map with the
// given roster.
func ArmySize(r *Roster, m *MapDef, side Side) int {
	return r.TotalCount() - m.ImpassableSetupCells(side)
}

// ClassicRoster is the traditional 40-piece army.
func ClassicRoster() *Roster {
	return &Roster{
		ID:   "classic",
		Name: "Classic",
		Units: []UnitDef{
			{Type: "marshal", Rank: 1, Count: 1, Moveable: true, Class: ClassStandard},
			{Type: "general", Rank: 2, Count: 1, Moveable: true, Class: ClassStandard},
			{Type: "colonel", Rank: 3, Count: 2, Moveable: true, Class: ClassStandard},
			{Type: "major", Rank: 4, Count: 3, Moveable: true, Class: ClassStandard},
			{Type: "captain", Rank: 5, Count: 4, Moveable: true, Class: ClassStandard},
			{Type: "lieutenant", Rank: 6, Count: 4, Moveable: true, Class: ClassStandard},
			{Type: "sergeant", Rank: 7, Count: 4, Moveable: true, Class: ClassStandard},
			{Type: "miner", Rank: 8, Count: 5, Moveable: true, Class: ClassStandard,
				Abilities: []AbilitySpec{{ID: "defuse"}}},
			{Type: "scout", Rank: 9, Count: 8, Moveable: true, Class: ClassScout,
				Abilities: []AbilitySpec{{ID: "mobile", Params: map[string]int{"range": 9}}}},
			{Type: "spy", Rank: 10, Count: 1, Moveable: true, Class: ClassAssassin},
			{Type: "mine", Rank: 11, Count: 6, Moveable: false, Class: ClassMine},
			{Type: "flag", Rank: 12, Count: 1, Moveable: false, Class: ClassFlag},
		},
	}
}

// VanguardRoster is the expanded army with fear, curse, veteran, flying,
// and sniper units.
func VanguardRoster() *Roster {
	return &Roster{
		ID:   "vanguard",
		Name: "Vanguard",
		Units: []UnitDef{
			{Type: "warlord", Rank: 1, Count: 1, Moveable: true, Class: ClassStandard},
			{Type: "champion", Rank: 2, Count: 1, Moveable: true, Class: ClassStandard,
				Abilities: []AbilitySpec{{ID: "veteran", Params: map[string]int{"bonus": 1}}}},
			{Type: "dreadknight", Rank: 3, Count: 2, Moveable: true, Class: ClassStandard,
				Abilities: []AbilitySpec{{ID: "fear", Params: map[string]int{"penalty": 1}}}},
			{Type: "reaver", Rank: 4, Count: 4, Moveable: true, Class: ClassStandard},
			{Type: "longshot", Rank: 5, Count: 3, Moveable: true, Class: ClassSniper,
				Abilities: []AbilitySpec{{ID: "mobile", Params: map[string]int{"range": 2}}}},
			{Type: "harrier", Rank: 6, Count: 4, Moveable: true, Class: ClassStandard,
				Abilities: []AbilitySpec{{ID: "flying"}}},
			{Type: "pikeman", Rank: 7, Count: 4, Moveable: true, Class: ClassStandard},
			{Type: "sapper", Rank: 8, Count: 5, Moveable: true, Class: ClassStandard,
				Abilities: []AbilitySpec{{ID: "defuse"}}},
			{Type: "outrider", Rank: 9, Count: 8, Moveable: true, Class: ClassScout,
				Abilities: []AbilitySpec{{ID: "mobile", Params: map[string]int{"range": 9}}}},
			{Type: "shade", Rank: 10, Count: 1, Moveable: true, Class: ClassAssassin},
			{Type: "hexmine", Rank: 11, Count: 2, Moveable: false, Class: ClassMine,
				Abilities: []AbilitySpec{{ID: "curse", Params: map[string]int{"penalty": 1}}}},
			{Type: "mine", Rank: 11, Count: 4, Moveable: false, Class: ClassMine},
			{Type: "banner", Rank: 12, Count: 1, Moveable: false, Class: ClassFlag},
		},
	}
}

// ClassicMap is the traditional 10×10 board with two central lakes.
func ClassicMap() *MapDef {
	return &MapDef{
		ID:     "classic",
		Name:   "Classic",
		Width:  10,
		Height: 10,
		Water: []Coord{
			{2, 4}, {3, 4}, {6, 4}, {7, 4},
			{2, 5}, {3, 5}, {6, 5}, {7, 5},
		},
		SetupRows: map[Side][]int{
			Away: {0, 1, 2, 3},
			Home: {6, 7, 8, 9},
		},
	}
}

// HighlandMap adds ridge terrain in the midfield and floods one corner of
// each setup zone, shrinking both armies by one piece.
func HighlandMap() *MapDef {
	return &MapDef{
		ID:     "highland",
		Name:   "Highland",
		Width:  10,
		Height: 10,
		Water: []Coord{
			{2, 4}, {3, 4}, {2, 5}, {3, 5},
			{6, 4}, {7, 4}, {6, 5}, {7, 5},
			{0, 0}, {9, 9},
		},
		Ridges: []Coord{
			{4, 4}, {5, 4}, {4, 5}, {5, 5},
			{0, 4}, {0, 5}, {9, 4}, {9, 5},
		},
		SetupRows: map[Side][]int{
			Away: {0, 1, 2, 3},
			Home: {6, 7, 8, 9},
		},
	}
}
