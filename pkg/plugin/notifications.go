package plugin

import (
	"context"
	"encoding/json"

	"github.com/openlauncher/plugin-go/pkg/models"
	"github.com/openlauncher/plugin-go/pkg/protocol"
)

// Outbound notifications the integration pushes to the client outside of any
// request. All of them are fire-and-forget; a closed connection surfaces as
// an error but never panics.

// StoreCredentials asks the client to persist credentials for the next
// session. The payload is never logged.
func (p *Plugin) StoreCredentials(ctx context.Context, credentials any) error {
	return p.conn.Notify(ctx, "store_credentials", credentials, protocol.SensitiveAll())
}

// AddGame announces a game newly present in the user's library.
func (p *Plugin) AddGame(ctx context.Context, game models.Game) error {
	return p.conn.Notify(ctx, "owned_game_added", map[string]any{"owned_game": game}, protocol.Sensitive{})
}

// RemoveGame announces a game no longer present in the user's library.
func (p *Plugin) RemoveGame(ctx context.Context, gameID string) error {
	return p.conn.Notify(ctx, "owned_game_removed", map[string]any{"game_id": gameID}, protocol.Sensitive{})
}

// UpdateGame announces changed game details.
func (p *Plugin) UpdateGame(ctx context.Context, game models.Game) error {
	return p.conn.Notify(ctx, "owned_game_updated", map[string]any{"owned_game": game}, protocol.Sensitive{})
}

// UnlockAchievement announces an achievement unlocked while serving.
func (p *Plugin) UnlockAchievement(ctx context.Context, gameID string, achievement models.Achievement) error {
	return p.conn.Notify(ctx, "achievement_unlocked", map[string]any{
		"game_id":     gameID,
		"achievement": achievement,
	}, protocol.Sensitive{})
}

// UpdateLocalGameStatus announces an install state change of a local game.
func (p *Plugin) UpdateLocalGameStatus(ctx context.Context, localGame models.LocalGame) error {
	return p.conn.Notify(ctx, "local_game_status_changed", map[string]any{"local_game": localGame}, protocol.Sensitive{})
}

// AddFriend announces a user newly added to the friend list.
func (p *Plugin) AddFriend(ctx context.Context, user models.UserInfo) error {
	return p.conn.Notify(ctx, "friend_added", map[string]any{"friend_info": user}, protocol.Sensitive{})
}

// RemoveFriend announces a user removed from the friend list.
func (p *Plugin) RemoveFriend(ctx context.Context, userID string) error {
	return p.conn.Notify(ctx, "friend_removed", map[string]any{"user_id": userID}, protocol.Sensitive{})
}

// UpdateGameTime announces changed play time for a game.
func (p *Plugin) UpdateGameTime(ctx context.Context, gameTime models.GameTime) error {
	return p.conn.Notify(ctx, "game_time_updated", map[string]any{"game_time": gameTime}, protocol.Sensitive{})
}

// UpdateUserPresence announces a presence change of a tracked user.
func (p *Plugin) UpdateUserPresence(ctx context.Context, userID string, presence models.UserPresence) error {
	return p.conn.Notify(ctx, "user_presence_updated", map[string]any{
		"user_id":  userID,
		"presence": presence,
	}, protocol.Sensitive{})
}

// LostAuthentication tells the client the session is no longer valid and the
// user has to log in again.
func (p *Plugin) LostAuthentication(ctx context.Context) error {
	return p.conn.Notify(ctx, "authentication_lost", nil, protocol.Sensitive{})
}

// RefreshCredentials asks the client to refresh stored credentials, for
// example by re-running a hidden web flow. The result payload is
// integration-specific and never logged.
func (p *Plugin) RefreshCredentials(ctx context.Context, params any) (json.RawMessage, error) {
	return p.conn.Call(ctx, "refresh_credentials", params, protocol.SensitiveAll())
}

// CacheSet updates one entry of the persistent cache. The change is local
// until PushCache sends it to the client.
func (p *Plugin) CacheSet(key string, value json.RawMessage) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache[key] = value
}

// CacheGet reads one entry of the persistent cache.
func (p *Plugin) CacheGet(key string) (json.RawMessage, bool) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	v, ok := p.cache[key]
	return v, ok
}

// PushCache sends the whole persistent cache to the client for storage.
func (p *Plugin) PushCache(ctx context.Context) error {
	p.cacheMu.Lock()
	data := make(map[string]json.RawMessage, len(p.cache))
	for k, v := range p.cache {
		data[k] = v
	}
	p.cacheMu.Unlock()
	return p.conn.Notify(ctx, "push_cache", map[string]any{"data": data}, protocol.SensitiveAll())
}
