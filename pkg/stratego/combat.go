package stratego

import "fmt"

// CombatOutcome is how a single combat resolved.
type CombatOutcome string

const (
	AttackerWins CombatOutcome = "attacker_wins"
	DefenderWins CombatOutcome = "defender_wins"
	MutualLoss   CombatOutcome = "mutual_loss"
)

// CombatResult reports one resolved combat. Both participants are always
// revealed, so the full identities are safe to send to both players.
type CombatResult struct {
	Outcome      CombatOutcome `json:"outcome"`
	Rule         string        `json:"rule"` // special rule name, or "rank"
	AttackerType string        `json:"attacker_type"`
	AttackerRank int           `json:"attacker_rank"`
	DefenderType string        `json:"defender_type"`
	DefenderRank int           `json:"defender_rank"`
	FlagCaptured bool          `json:"flag_captured,omitempty"`
	// AttackerHolds is set when a sniper wins from range and stays on
	// its origin square instead of occupying the defender's.
	AttackerHolds  bool   `json:"attacker_holds,omitempty"`
	CurseApplied   bool   `json:"curse_applied,omitempty"`
	VeteranApplied bool   `json:"veteran_applied,omitempty"`
	Description    string `json:"description"`
}

// combatRule is one entry in the ordered special-case table. The first
// rule whose predicate matches decides the combat, unless the attacker
// satisfies the rule's exception, in which case resolution falls through
// to the next rule (and ultimately to rank comparison). Order is
// load-bearing: flag capture must precede the mine rule, and both must
// precede assassination.
type combatRule struct {
	name    string
	applies func(att, def *Piece, b *Board) bool
	exempt  func(att *Piece) bool
	outcome CombatOutcome
}

func combatRules() []combatRule {
	return []combatRule{
		{
			name:    "flag_capture",
			applies: func(_, def *Piece, _ *Board) bool { return def.Class == ClassFlag },
			outcome: AttackerWins,
		},
		{
			name:    "mine_detonation",
			applies: func(_, def *Piece, _ *Board) bool { return def.Class == ClassMine },
			exempt:  func(att *Piece) bool { return att.Abilities.Has(AbilityDefuse) },
			outcome: DefenderWins,
		},
		{
			name: "assassination",
			applies: func(att, def *Piece, b *Board) bool {
				if att.Class != ClassAssassin {
					return false
				}
				strongest, ok := b.StrongestRank(def.Side)
				return ok && def.Rank == strongest
			},
			outcome: AttackerWins,
		},
	}
}

// ResolveCombat resolves an attack by the piece at from against the
// enemy piece at to. It mutates the pieces (reveal flags and the
// permanent curse/veteran effects on the winner) but not the board; the
// caller applies removals and occupancy from the returned result.
//
// Effective rank for the default comparison applies modifiers in a fixed
// precedence: permanent modifiers are already folded into Rank, then the
// defender's ridge bonus, then the transient fear penalty. Lower wins;
// a tie destroys both pieces.
func ResolveCombat(attacker, defender *Piece, defTerrain Terrain, b *Board, from, to Coord) CombatResult {
	// Combat always de-anonymizes both sides, whatever the outcome.
	attacker.Revealed = true
	defender.Revealed = true

	res := CombatResult{
		AttackerType: attacker.Type,
		AttackerRank: attacker.Rank,
		DefenderType: defender.Type,
		DefenderRank: defender.Rank,
	}

	decided := false
	for _, rule := range combatRules() {
		if !rule.applies(attacker, defender, b) {
			continue
		}
		if rule.exempt != nil && rule.exempt(attacker) {
			continue
		}
		res.Outcome = rule.outcome
		res.Rule = rule.name
		decided = true
		break
	}

	if !decided {
		res.Rule = "rank"
		attEff, defEff := effectiveRanks(attacker, defender, defTerrain, from, to)
		switch {
		case attEff < defEff:
			res.Outcome = AttackerWins
		case defEff < attEff:
			res.Outcome = DefenderWins
		default:
			res.Outcome = MutualLoss
		}
	}

	if res.Rule == "flag_capture" {
		res.FlagCaptured = true
	}

	var winner, loser *Piece
	switch res.Outcome {
	case AttackerWins:
		winner, loser = attacker, defender
		if attacker.Class == ClassSniper && from.AxisDist(to) > 1 {
			res.AttackerHolds = true
		}
	case DefenderWins:
		winner, loser = defender, attacker
	}

	if winner != nil {
		res.CurseApplied = applyCurse(winner, loser)
		res.VeteranApplied = applyVeteran(winner)
	}

	res.Description = describeCombat(&res)
	return res
}

// effectiveRanks computes the transient combat ranks. The ridge bonus
// strengthens the defender (lower is stronger); fear weakens the other
// combatant by the carrier's penalty, and only at adjacency, so a ranged
// sniper strike is immune to fear.
func effectiveRanks(attacker, defender *Piece, defTerrain Terrain, from, to Coord) (attEff, defEff int) {
	attEff, defEff = attacker.Rank, defender.Rank
	if defTerrain == TerrainRidge {
		defEff--
	}
	if from.OrthAdjacent(to) {
		if fear, ok := defender.Abilities.Find(AbilityFear); ok {
			attEff += fear.Penalty
		}
		if fear, ok := attacker.Abilities.Find(AbilityFear); ok {
			defEff += fear.Penalty
		}
	}
	return attEff, defEff
}

// applyCurse permanently weakens the winner when the defeated piece
// carried a curse. A piece can only be cursed once; repeat triggers are
// no-ops so rank never drifts past the ability's bound.
func applyCurse(winner, loser *Piece) bool {
	if loser == nil || winner.Cursed {
		return false
	}
	curse, ok := loser.Abilities.Find(AbilityCurse)
	if !ok {
		return false
	}
	winner.Rank += curse.Penalty
	winner.Cursed = true
	return true
}

// applyVeteran permanently strengthens a veteran on its first combat
// win. Wins are counted every time; the bonus applies only once and
// never improves the rank past 1.
func applyVeteran(winner *Piece) bool {
	vet, ok := winner.Abilities.Find(AbilityVeteran)
	if !ok {
		return false
	}
	first := winner.VeteranWins == 0
	winner.VeteranWins++
	if !first {
		return false
	}
	winner.Rank -= vet.Bonus
	if winner.Rank < 1 {
		winner.Rank = 1
	}
	return true
}

func describeCombat(r *CombatResult) string {
	switch r.Outcome {
	case AttackerWins:
		if r.FlagCaptured {
			return fmt.Sprintf("%s captures the %s", r.AttackerType, r.DefenderType)
		}
		return fmt.Sprintf("%s (%d) defeats %s (%d)", r.AttackerType, r.AttackerRank, r.DefenderType, r.DefenderRank)
	case DefenderWins:
		return fmt.Sprintf("%s (%d) is defeated by %s (%d)", r.AttackerType, r.AttackerRank, r.DefenderType, r.DefenderRank)
	default:
		return fmt.Sprintf("%s and %s destroy each other", r.AttackerType, r.DefenderType)
	}
}
