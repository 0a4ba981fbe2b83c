package plugin

import (
	"context"
	"encoding/json"

	"github.com/openlauncher/plugin-go/pkg/models"
)

// Integration is the minimal contract a platform integration implements.
// Every other capability below is optional: the plugin inspects which
// interfaces the concrete integration satisfies, registers the matching
// protocol methods once at construction, and reports the corresponding
// features in get_capabilities. Capability questions are answered from that
// table, never by probing handlers.
type Integration interface {
	// Authenticate handles the authenticate step. storedCredentials carries
	// whatever the client persisted in a previous session, or nil on first
	// login. Return a finished Authentication or a NextStep to continue in
	// the client's browser.
	Authenticate(ctx context.Context, storedCredentials json.RawMessage) (models.AuthResult, error)
}

// CredentialsStepper continues a multi-step web login started by a NextStep.
type CredentialsStepper interface {
	PassLoginCredentials(ctx context.Context, step string, credentials map[string]string, cookies []models.Cookie) (models.AuthResult, error)
}

// OwnedGamesProvider returns the owned games of the authenticated user.
type OwnedGamesProvider interface {
	GetOwnedGames(ctx context.Context) ([]models.Game, error)
}

// LocalGamesProvider returns the games present on the user's machine.
type LocalGamesProvider interface {
	GetLocalGames(ctx context.Context) ([]models.LocalGame, error)
}

// FriendsProvider returns the friends of the authenticated user.
type FriendsProvider interface {
	GetFriends(ctx context.Context) ([]models.UserInfo, error)
}

// AchievementsImporter serves the achievements import flow. The prepare step
// runs once per import and may batch backend requests; its return value is
// handed to every per-game call.
type AchievementsImporter interface {
	PrepareAchievementsContext(ctx context.Context, gameIDs []string) (any, error)
	GetUnlockedAchievements(ctx context.Context, gameID string, importCtx any) ([]models.Achievement, error)
}

// GameTimeImporter serves the game time import flow.
type GameTimeImporter interface {
	PrepareGameTimesContext(ctx context.Context, gameIDs []string) (any, error)
	GetGameTime(ctx context.Context, gameID string, importCtx any) (models.GameTime, error)
}

// LibrarySettingsImporter serves the game library settings import flow.
type LibrarySettingsImporter interface {
	PrepareGameLibrarySettingsContext(ctx context.Context, gameIDs []string) (any, error)
	GetGameLibrarySettings(ctx context.Context, gameID string, importCtx any) (models.GameLibrarySettings, error)
}

// OSCompatibilityImporter serves the OS compatibility import flow.
type OSCompatibilityImporter interface {
	PrepareOSCompatibilityContext(ctx context.Context, gameIDs []string) (any, error)
	GetOSCompatibility(ctx context.Context, gameID string, importCtx any) (models.OSCompatibility, error)
}

// UserPresenceImporter serves the user presence import flow.
type UserPresenceImporter interface {
	PrepareUserPresenceContext(ctx context.Context, userIDs []string) (any, error)
	GetUserPresence(ctx context.Context, userID string, importCtx any) (models.UserPresence, error)
}

// GameLauncher launches a game on the user's machine.
type GameLauncher interface {
	LaunchGame(ctx context.Context, gameID string) error
}

// GameInstaller installs a game.
type GameInstaller interface {
	InstallGame(ctx context.Context, gameID string) error
}

// GameUninstaller uninstalls a game.
type GameUninstaller interface {
	UninstallGame(ctx context.Context, gameID string) error
}

// PlatformClientController starts and stops the platform's own client.
type PlatformClientController interface {
	LaunchPlatformClient(ctx context.Context) error
	ShutdownPlatformClient(ctx context.Context) error
}

// Ticker receives a periodic callback while the plugin is serving. Tick must
// not block; long work belongs in its own goroutine.
type Ticker interface {
	Tick(ctx context.Context)
}

// HandshakeListener is told when the handshake with the client completed and
// the persistent cache is available.
type HandshakeListener interface {
	HandshakeComplete(ctx context.Context)
}

// ShutdownHandler runs integration teardown during the shutdown grace
// period.
type ShutdownHandler interface {
	Shutdown(ctx context.Context) error
}
