package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for live match data.
func stateKey(matchID string) string             { return "match:" + matchID + ":state" }
func placementKey(matchID, side string) string   { return "match:" + matchID + ":placement:" + side }
func reconnectKey(matchID, userID string) string { return "match:" + matchID + ":reconnect:" + userID }

// ParseReconnectKey extracts the match and user IDs from a reconnect timer
// key. Returns ok=false for any other key.
func ParseReconnectKey(key string) (matchID, userID string, ok bool) {
	if !strings.HasPrefix(key, "match:") {
		return "", "", false
	}
	parts := strings.SplitN(key, ":", 4)
	if len(parts) != 4 || parts[2] != "reconnect" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// SetState stores the live match state JSON.
func (c *Client) SetState(ctx context.Context, matchID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(matchID), []byte(state), 0).Err()
}

// GetState retrieves the live match state JSON. Returns nil, nil when no
// state is cached.
func (c *Client) GetState(ctx context.Context, matchID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get match state: %w", err)
	}
	return json.RawMessage(data), nil
}

// SetPlacement stores a side's validated setup-phase placement.
func (c *Client) SetPlacement(ctx context.Context, matchID, side string, placement json.RawMessage) error {
	return c.rdb.Set(ctx, placementKey(matchID, side), []byte(placement), 0).Err()
}

// GetPlacement retrieves a side's stored placement, or nil, nil.
func (c *Client) GetPlacement(ctx context.Context, matchID, side string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, placementKey(matchID, side)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get placement: %w", err)
	}
	return json.RawMessage(data), nil
}

// SetReconnectTimer arms the abandonment timer for a disconnected player.
// The key's expiry fires a keyspace notification; deleting the key on
// reconnect cancels the timer.
func (c *Client) SetReconnectTimer(ctx context.Context, matchID, userID string, window time.Duration) error {
	if window <= 0 {
		window = time.Second
	}
	deadline := time.Now().Add(window)
	return c.rdb.Set(ctx, reconnectKey(matchID, userID), deadline.Unix(), window).Err()
}

// ClearReconnectTimer cancels a pending abandonment timer.
func (c *Client) ClearReconnectTimer(ctx context.Context, matchID, userID string) error {
	return c.rdb.Del(ctx, reconnectKey(matchID, userID)).Err()
}

// ReconnectDeadline reports whether an abandonment timer is armed and when
// it fires.
func (c *Client) ReconnectDeadline(ctx context.Context, matchID, userID string) (time.Time, bool, error) {
	unix, err := c.rdb.Get(ctx, reconnectKey(matchID, userID)).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get reconnect deadline: %w", err)
	}
	return time.Unix(unix, 0), true, nil
}

// DeleteMatchData removes all Redis data for a match (on match end). Any
// armed reconnect timers are cleared separately by the presence layer,
// which knows the user IDs involved.
func (c *Client) DeleteMatchData(ctx context.Context, matchID string) error {
	keys := []string{
		stateKey(matchID),
		placementKey(matchID, "home"),
		placementKey(matchID, "away"),
	}
	return c.rdb.Del(ctx, keys...).Err()
}
