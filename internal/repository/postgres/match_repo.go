package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mpetrov/fogline/internal/model"
)

// MatchRepo handles match and match_player database operations.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo creates a MatchRepo.
func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

const matchColumns = `id, name, creator_id, status, map_id, winner, win_reason, snapshot, created_at, started_at, finished_at`

func scanMatch(row interface{ Scan(...any) error }) (*model.Match, error) {
	var m model.Match
	var winner, winReason sql.NullString
	var snapshot []byte
	err := row.Scan(&m.ID, &m.Name, &m.CreatorID, &m.Status, &m.MapID, &winner, &winReason, &snapshot,
		&m.CreatedAt, &m.StartedAt, &m.FinishedAt)
	if err != nil {
		return nil, err
	}
	m.Winner = winner.String
	m.WinReason = winReason.String
	m.Snapshot = json.RawMessage(snapshot)
	return &m, nil
}

// Create inserts a new match in "waiting" status.
func (r *MatchRepo) Create(ctx context.Context, name, creatorID, mapID string) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`INSERT INTO matches (name, creator_id, map_id)
		 VALUES ($1, $2, $3)
		 RETURNING `+matchColumns,
		name, creatorID, mapID,
	))
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	return m, nil
}

// FindByID returns a match by ID with its players.
func (r *MatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}

	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Players = players
	return m, nil
}

// ListOpen returns matches still waiting for a second player.
func (r *MatchRepo) ListOpen(ctx context.Context) ([]model.Match, error) {
	return r.list(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE status = 'waiting' ORDER BY created_at DESC LIMIT 50`)
}

// ListByUser returns all matches a user has a seat in.
func (r *MatchRepo) ListByUser(ctx context.Context, userID string) ([]model.Match, error) {
	return r.list(ctx,
		`SELECT `+matchColumnsPrefixed("m")+`
		 FROM matches m JOIN match_players mp ON m.id = mp.match_id
		 WHERE mp.user_id = $1
		 ORDER BY m.created_at DESC LIMIT 50`, userID)
}

// ListFinished returns finished and abandoned matches, most recent first.
func (r *MatchRepo) ListFinished(ctx context.Context) ([]model.Match, error) {
	return r.list(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE status IN ('finished', 'abandoned')
		 ORDER BY finished_at DESC LIMIT 100`)
}

// ListUnfinished returns matches that were in progress (setup, playing, or
// paused) and need recovery after a server restart. Players are loaded.
func (r *MatchRepo) ListUnfinished(ctx context.Context) ([]model.Match, error) {
	matches, err := r.list(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE status IN ('setup', 'playing', 'paused')
		 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		players, err := r.ListPlayers(ctx, matches[i].ID)
		if err != nil {
			return nil, err
		}
		matches[i].Players = players
	}
	return matches, nil
}

func (r *MatchRepo) list(ctx context.Context, query string, args ...any) ([]model.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func matchColumnsPrefixed(alias string) string {
	return alias + ".id, " + alias + ".name, " + alias + ".creator_id, " + alias + ".status, " +
		alias + ".map_id, " + alias + ".winner, " + alias + ".win_reason, " + alias + ".snapshot, " +
		alias + ".created_at, " + alias + ".started_at, " + alias + ".finished_at"
}

// ListPlayers returns both seats of a match.
func (r *MatchRepo) ListPlayers(ctx context.Context, matchID string) ([]model.MatchPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT match_id, user_id, side, roster_id, placed, ready, connected, disconnected_at, joined_at
		 FROM match_players WHERE match_id = $1 ORDER BY joined_at`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.MatchPlayer
	for rows.Next() {
		var p model.MatchPlayer
		var rosterID sql.NullString
		if err := rows.Scan(&p.MatchID, &p.UserID, &p.Side, &rosterID, &p.Placed, &p.Ready, &p.Connected, &p.DisconnectedAt, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.RosterID = rosterID.String
		players = append(players, p)
	}
	return players, rows.Err()
}

// AddPlayer seats a user on a side.
func (r *MatchRepo) AddPlayer(ctx context.Context, matchID, userID, side string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_players (match_id, user_id, side, connected) VALUES ($1, $2, $3, true)
		 ON CONFLICT DO NOTHING`,
		matchID, userID, side,
	)
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}
	return nil
}

// SetStatus updates the match status, stamping started_at on the first
// transition into setup.
func (r *MatchRepo) SetStatus(ctx context.Context, matchID, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = $1,
		        started_at = CASE WHEN $1 = 'setup' AND started_at IS NULL THEN now() ELSE started_at END
		 WHERE id = $2`,
		status, matchID,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// SetRoster records a player's army choice.
func (r *MatchRepo) SetRoster(ctx context.Context, matchID, userID, rosterID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE match_players SET roster_id = $1 WHERE match_id = $2 AND user_id = $3`,
		rosterID, matchID, userID,
	)
	if err != nil {
		return fmt.Errorf("set roster: %w", err)
	}
	return nil
}

// SetPlaced marks whether a player has a validated placement stored.
func (r *MatchRepo) SetPlaced(ctx context.Context, matchID, userID string, placed bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE match_players SET placed = $1 WHERE match_id = $2 AND user_id = $3`,
		placed, matchID, userID,
	)
	if err != nil {
		return fmt.Errorf("set placed: %w", err)
	}
	return nil
}

// SetReady marks a player's setup confirmation.
func (r *MatchRepo) SetReady(ctx context.Context, matchID, userID string, ready bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE match_players SET ready = $1 WHERE match_id = $2 AND user_id = $3`,
		ready, matchID, userID,
	)
	if err != nil {
		return fmt.Errorf("set ready: %w", err)
	}
	return nil
}

// SetConnected updates a player's connection flag and disconnect timestamp.
func (r *MatchRepo) SetConnected(ctx context.Context, matchID, userID string, connected bool, at *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE match_players SET connected = $1, disconnected_at = $2 WHERE match_id = $3 AND user_id = $4`,
		connected, at, matchID, userID,
	)
	if err != nil {
		return fmt.Errorf("set connected: %w", err)
	}
	return nil
}

// SaveSnapshot persists the authoritative game state for the match.
func (r *MatchRepo) SaveSnapshot(ctx context.Context, matchID string, snapshot json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches SET snapshot = $1 WHERE id = $2`,
		[]byte(snapshot), matchID,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SetFinished ends a match with a terminal status, winner, and reason.
func (r *MatchRepo) SetFinished(ctx context.Context, matchID, status, winner, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = $1, winner = NULLIF($2, ''), win_reason = NULLIF($3, ''), finished_at = now()
		 WHERE id = $4`,
		status, winner, reason, matchID,
	)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// Delete removes a match and its seats (cascades to match_players).
func (r *MatchRepo) Delete(ctx context.Context, matchID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}
