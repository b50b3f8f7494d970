package stratego

// AbilityKind enumerates the special abilities the engine understands.
// Content packs refer to abilities by string id; ids the engine does not
// recognize parse to AbilityUnknown, which every rule treats as a no-op,
// so new content never breaks an old server.
type AbilityKind string

const (
	AbilityUnknown AbilityKind = "unknown"
	AbilityMobile  AbilityKind = "mobile"  // straight-line movement beyond one square
	AbilityFlying  AbilityKind = "flying"  // ignores impassable terrain while moving
	AbilityDefuse  AbilityKind = "defuse"  // negates the mine rule when attacking
	AbilityFear    AbilityKind = "fear"    // adjacent opponents fight one rank weaker
	AbilityCurse   AbilityKind = "curse"   // whoever defeats this piece is permanently weakened
	AbilityVeteran AbilityKind = "veteran" // permanently strengthened after its first win
	AbilityRecon   AbilityKind = "recon"   // reserved reveal tokens (active scouting)
)

// Ability is a capability with its typed parameters. Only the fields
// relevant to the Kind are meaningful.
type Ability struct {
	Kind    AbilityKind `json:"kind"`
	Range   int         `json:"range,omitempty"`   // mobile
	Penalty int         `json:"penalty,omitempty"` // fear, curse
	Bonus   int         `json:"bonus,omitempty"`   // veteran
	Tokens  int         `json:"tokens,omitempty"`  // recon uses remaining
}

// AbilitySpec is the wire/content form of an ability: an id plus optional
// numeric parameters.
type AbilitySpec struct {
	ID     string         `json:"id"`
	Params map[string]int `json:"params,omitempty"`
}

// ParseAbility converts a content-pack ability spec into the engine's
// tagged form. Unrecognized ids become AbilityUnknown. Parameters missing
// from the spec get the rule's default.
func ParseAbility(spec AbilitySpec) Ability {
	p := func(key string, def int) int {
		if v, ok := spec.Params[key]; ok {
			return v
		}
		return def
	}
	switch AbilityKind(spec.ID) {
	case AbilityMobile:
		return Ability{Kind: AbilityMobile, Range: p("range", 2)}
	case AbilityFlying:
		return Ability{Kind: AbilityFlying}
	case AbilityDefuse:
		return Ability{Kind: AbilityDefuse}
	case AbilityFear:
		return Ability{Kind: AbilityFear, Penalty: p("penalty", 1)}
	case AbilityCurse:
		return Ability{Kind: AbilityCurse, Penalty: p("penalty", 1)}
	case AbilityVeteran:
		return Ability{Kind: AbilityVeteran, Bonus: p("bonus", 1)}
	case AbilityRecon:
		return Ability{Kind: AbilityRecon, Tokens: p("tokens", 1)}
	default:
		return Ability{Kind: AbilityUnknown}
	}
}

// Abilities is a piece's capability set.
type Abilities []Ability

// Has reports whether the set contains an ability of the given kind.
func (as Abilities) Has(kind AbilityKind) bool {
	_, ok := as.Find(kind)
	return ok
}

// Find returns the first ability of the given kind.
func (as Abilities) Find(kind AbilityKind) (Ability, bool) {
	for _, a := range as {
		if a.Kind == kind {
			return a, true
		}
	}
	return Ability{}, false
}

// Clone returns an independent copy of the set.
func (as Abilities) Clone() Abilities {
	if len(as) == 0 {
		return nil
	}
	out := make(Abilities, len(as))
	copy(out, as)
	return out
}

// ParseAbilities converts a list of content specs, preserving order.
func ParseAbilities(specs []AbilitySpec) Abilities {
	if len(specs) == 0 {
		return nil
	}
	out := make(Abilities, 0, len(specs))
	for _, s := range specs {
		out = append(out, ParseAbility(s))
	}
	return out
}
