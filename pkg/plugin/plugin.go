// Package plugin implements the platform-integration side of the host
// protocol: a JSON-RPC engine over a point-to-point stream, the capability
// table, and the authenticate/run/shutdown lifecycle.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/openlauncher/plugin-go/pkg/config"
	apperrors "github.com/openlauncher/plugin-go/pkg/errors"
	"github.com/openlauncher/plugin-go/pkg/handler"
	"github.com/openlauncher/plugin-go/pkg/logging"
	"github.com/openlauncher/plugin-go/pkg/metric"
	"github.com/openlauncher/plugin-go/pkg/models"
	"github.com/openlauncher/plugin-go/pkg/protocol"
	"github.com/openlauncher/plugin-go/pkg/transport"
)

// Options configures a Plugin instance.
type Options struct {
	// Platform identifies the integration to the client.
	Platform models.Platform
	// Version is the integration version reported in get_capabilities.
	Version string
	// HandshakeToken is the pre-validated token received at process start
	// and echoed back during the handshake.
	HandshakeToken string
	// Transport is the established stream to the host.
	Transport transport.Transport
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// Metrics defaults to a fresh unregistered set.
	Metrics *metric.Metrics
	// Config defaults to config.Default().
	Config *config.Config
}

// Plugin drives one integration process: it owns the connection, the
// capability table and the lifecycle. Construct it once and pass it the
// integration; there is no ambient global instance.
type Plugin struct {
	platform       models.Platform
	version        string
	handshakeToken string

	integration Integration

	logger  zerolog.Logger
	metrics *metric.Metrics
	cfg     config.Config

	conn    *Connection
	router  *handler.Router
	tracker *handler.Tracker
	state   *stateMachine

	features []models.Feature

	cacheMu sync.Mutex
	cache   map[string]json.RawMessage

	importsMu sync.Mutex
	imports   map[importKind]bool

	notifyLimiter *rate.Limiter

	runCtxMu sync.Mutex
	runCtx   context.Context

	handshakeOnce sync.Once
	handshakeCh   chan struct{}

	shutdownReqOnce sync.Once
	shutdownReqCh   chan struct{}

	shutdownOnce sync.Once
}

// New constructs a Plugin for the given integration. The capability table is
// assembled here, from which interfaces the integration satisfies, and is
// immutable afterwards.
func New(integration Integration, opts Options) (*Plugin, error) {
	if integration == nil {
		return nil, fmt.Errorf("plugin: integration is required")
	}
	if opts.Platform == "" {
		return nil, fmt.Errorf("plugin: platform is required")
	}
	if opts.Version == "" {
		return nil, fmt.Errorf("plugin: version is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("plugin: transport is required")
	}

	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	logger := logging.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().
		Str("platform", string(opts.Platform)).
		Str("session", uuid.NewString()).
		Logger()

	metrics := opts.Metrics
	if metrics == nil {
		metrics = metric.New()
	}

	p := &Plugin{
		platform:       opts.Platform,
		version:        opts.Version,
		handshakeToken: opts.HandshakeToken,
		integration:    integration,
		logger:         logger,
		metrics:        metrics,
		cfg:            cfg,
		state:          newStateMachine(logging.Component(logger, "lifecycle")),
		cache:          make(map[string]json.RawMessage),
		imports:        make(map[importKind]bool),
		notifyLimiter:  rate.NewLimiter(rate.Limit(cfg.NotifyPerSecond), int(cfg.NotifyPerSecond)),
		runCtx:         context.Background(),
		handshakeCh:    make(chan struct{}),
		shutdownReqCh:  make(chan struct{}),
	}

	p.tracker = handler.NewTracker(logging.Component(logger, "tracker"), metrics)
	p.router = handler.NewRouter(logging.Component(logger, "router"), metrics, cfg.HandlerTimeout)
	p.conn = NewConnection(opts.Transport, p.router, p.tracker,
		logging.Component(logger, "connection"), metrics, cfg.CallTimeout)

	p.registerHandlers()
	p.router.Freeze()
	p.conn.OnClose(p.requestShutdown)

	p.logger.Info().Str("version", p.version).Msg("plugin created")
	return p, nil
}

// Features returns the features the integration declared support for.
func (p *Plugin) Features() []models.Feature {
	out := make([]models.Feature, len(p.features))
	copy(out, p.features)
	return out
}

// State returns the current lifecycle state.
func (p *Plugin) State() State { return p.state.current() }

// registerHandlers builds the method and capability tables. Internal methods
// are always present; integration methods are registered only when the
// concrete integration provides the matching interface.
func (p *Plugin) registerHandlers() {
	none := protocol.Sensitive{}

	// internal
	p.router.RegisterMethod("shutdown", p.handleShutdown, false, none)
	p.router.RegisterMethod("get_capabilities", p.handleGetCapabilities, true, none)
	p.router.RegisterMethod("initialize_cache", p.handleInitializeCache, true, protocol.SensitiveKeys("data"))
	p.router.RegisterMethod("ping", p.handlePing, true, none)

	// authentication
	p.router.RegisterMethod("init_authentication", p.handleInitAuthentication, false,
		protocol.SensitiveKeys("stored_credentials"))
	if stepper, ok := p.integration.(CredentialsStepper); ok {
		p.router.RegisterMethod("pass_login_credentials", p.handlePassLoginCredentials(stepper), false,
			protocol.SensitiveKeys("credentials", "cookies"))
	}

	// library
	if provider, ok := p.integration.(OwnedGamesProvider); ok {
		p.router.RegisterMethod("import_owned_games", p.handleImportOwnedGames(provider), false, none)
		p.features = append(p.features, models.FeatureImportOwnedGames)
	}
	if provider, ok := p.integration.(LocalGamesProvider); ok {
		p.router.RegisterMethod("import_local_games", p.handleImportLocalGames(provider), false, none)
		p.features = append(p.features, models.FeatureImportInstalledGames)
	}
	if provider, ok := p.integration.(FriendsProvider); ok {
		p.router.RegisterMethod("import_friends", p.handleImportFriends(provider), false, none)
		p.features = append(p.features, models.FeatureImportFriends)
	}

	// import flows
	if imp, ok := p.integration.(AchievementsImporter); ok {
		p.router.RegisterMethod("start_achievements_import", p.handleStartAchievementsImport(imp), false, none)
		p.features = append(p.features, models.FeatureImportAchievements)
	}
	if imp, ok := p.integration.(GameTimeImporter); ok {
		p.router.RegisterMethod("start_game_times_import", p.handleStartGameTimesImport(imp), false, none)
		p.features = append(p.features, models.FeatureImportGameTime)
	}
	if imp, ok := p.integration.(LibrarySettingsImporter); ok {
		p.router.RegisterMethod("start_game_library_settings_import", p.handleStartLibrarySettingsImport(imp), false, none)
		p.features = append(p.features, models.FeatureImportGameLibrarySettings)
	}
	if imp, ok := p.integration.(OSCompatibilityImporter); ok {
		p.router.RegisterMethod("start_os_compatibility_import", p.handleStartOSCompatibilityImport(imp), false, none)
		p.features = append(p.features, models.FeatureImportOSCompatibility)
	}
	if imp, ok := p.integration.(UserPresenceImporter); ok {
		p.router.RegisterMethod("start_user_presence_import", p.handleStartUserPresenceImport(imp), false, none)
		p.features = append(p.features, models.FeatureImportUserPresence)
	}

	// notifications from the client
	if launcher, ok := p.integration.(GameLauncher); ok {
		p.router.RegisterNotification("launch_game", p.handleGameAction(launcher.LaunchGame), false, none)
		p.features = append(p.features, models.FeatureLaunchGame)
	}
	if installer, ok := p.integration.(GameInstaller); ok {
		p.router.RegisterNotification("install_game", p.handleGameAction(installer.InstallGame), false, none)
		p.features = append(p.features, models.FeatureInstallGame)
	}
	if uninstaller, ok := p.integration.(GameUninstaller); ok {
		p.router.RegisterNotification("uninstall_game", p.handleGameAction(uninstaller.UninstallGame), false, none)
		p.features = append(p.features, models.FeatureUninstallGame)
	}
	if controller, ok := p.integration.(PlatformClientController); ok {
		p.router.RegisterNotification("launch_platform_client", func(ctx context.Context, _ json.RawMessage) error {
			return controller.LaunchPlatformClient(ctx)
		}, false, none)
		p.router.RegisterNotification("shutdown_platform_client", func(ctx context.Context, _ json.RawMessage) error {
			return controller.ShutdownPlatformClient(ctx)
		}, false, none)
		p.features = append(p.features,
			models.FeatureLaunchPlatformClient, models.FeatureShutdownPlatformClient)
	}
}

// Run serves the connection until the peer disconnects, the host requests
// shutdown, or ctx is cancelled. It returns after the lifecycle reached
// Closed.
func (p *Plugin) Run(ctx context.Context) error {
	if err := p.state.to(StateAuthenticating); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.setRunCtx(runCtx)

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return p.conn.Run(gctx)
	})

	g.Go(func() error {
		p.tickLoop(gctx)
		return nil
	})

	g.Go(func() error {
		select {
		case <-p.shutdownReqCh:
		case <-gctx.Done():
		}
		p.shutdown(context.Background())
		cancel()
		return nil
	})

	err := g.Wait()
	// Transport closure without an explicit shutdown request still ends in
	// Closed.
	p.shutdown(context.Background())
	p.logger.Info().Msg("plugin stopped")
	return err
}

// tickLoop drives the integration's periodic callback once the handshake
// completed.
func (p *Plugin) tickLoop(ctx context.Context) {
	ticker, ok := p.integration.(Ticker)
	if !ok {
		return
	}

	select {
	case <-p.handshakeCh:
	case <-ctx.Done():
		return
	}

	t := time.NewTicker(p.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ticker.Tick(ctx)
		}
	}
}

// requestShutdown asks the supervisor to begin shutdown. Safe to call from
// any goroutine, including request handlers.
func (p *Plugin) requestShutdown() {
	p.shutdownReqOnce.Do(func() { close(p.shutdownReqCh) })
}

// shutdown drains in-flight handlers for the configured grace period, runs
// the integration teardown hook and closes the transport. The lifecycle ends
// in Closed no matter where it started.
func (p *Plugin) shutdown(ctx context.Context) {
	p.shutdownOnce.Do(func() {
		if p.state.current() == StateRunning {
			_ = p.state.to(StateShuttingDown)
		}
		p.logger.Info().Msg("shutting down")

		if !p.router.Drain(p.cfg.ShutdownGrace) {
			p.logger.Warn().Dur("grace", p.cfg.ShutdownGrace).Msg("handlers still running after grace period")
		}

		if h, ok := p.integration.(ShutdownHandler); ok {
			hctx, cancel := context.WithTimeout(ctx, p.cfg.ShutdownGrace)
			if err := h.Shutdown(hctx); err != nil {
				p.logger.Error().Err(err).Msg("integration shutdown hook failed")
			}
			cancel()
		}

		p.tracker.FailAll(apperrors.ErrConnectionClosed)
		_ = p.conn.Close()
		_ = p.state.to(StateClosed)
	})
}

func (p *Plugin) setRunCtx(ctx context.Context) {
	p.runCtxMu.Lock()
	defer p.runCtxMu.Unlock()
	p.runCtx = ctx
}

func (p *Plugin) backgroundCtx() context.Context {
	p.runCtxMu.Lock()
	defer p.runCtxMu.Unlock()
	return p.runCtx
}

// --- internal handlers ---

type initializeCacheParams struct {
	Data map[string]json.RawMessage `json:"data"`
}

type initAuthenticationParams struct {
	StoredCredentials json.RawMessage `json:"stored_credentials"`
}

type passLoginCredentialsParams struct {
	Step        string            `json:"step"`
	Credentials map[string]string `json:"credentials"`
	Cookies     []models.Cookie   `json:"cookies"`
}

func parseParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.NewInvalidParams(err)
	}
	return nil
}

func (p *Plugin) handleShutdown(ctx context.Context, _ json.RawMessage) (any, error) {
	p.logger.Info().Msg("host requested shutdown")
	p.requestShutdown()
	return nil, nil
}

func (p *Plugin) handleGetCapabilities(_ context.Context, _ json.RawMessage) (any, error) {
	return map[string]any{
		"platform_name": p.platform,
		"version":       p.version,
		"features":      p.Features(),
		"token":         p.handshakeToken,
	}, nil
}

func (p *Plugin) handlePing(_ context.Context, _ json.RawMessage) (any, error) {
	return nil, nil
}

func (p *Plugin) handleInitializeCache(ctx context.Context, raw json.RawMessage) (any, error) {
	var params initializeCacheParams
	if err := parseParams(raw, &params); err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	p.cache = params.Data
	if p.cache == nil {
		p.cache = make(map[string]json.RawMessage)
	}
	p.cacheMu.Unlock()

	if l, ok := p.integration.(HandshakeListener); ok {
		l.HandshakeComplete(ctx)
	}
	p.handshakeOnce.Do(func() { close(p.handshakeCh) })
	return nil, nil
}

func (p *Plugin) handleInitAuthentication(ctx context.Context, raw json.RawMessage) (any, error) {
	var params initAuthenticationParams
	if err := parseParams(raw, &params); err != nil {
		return nil, err
	}
	result, err := p.integration.Authenticate(ctx, params.StoredCredentials)
	return p.finishAuthStep(result, err)
}

func (p *Plugin) handlePassLoginCredentials(stepper CredentialsStepper) handler.MethodFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params passLoginCredentialsParams
		if err := parseParams(raw, &params); err != nil {
			return nil, err
		}
		result, err := stepper.PassLoginCredentials(ctx, params.Step, params.Credentials, params.Cookies)
		return p.finishAuthStep(result, err)
	}
}

// finishAuthStep maps one authentication step outcome onto the lifecycle: a
// finished Authentication moves the plugin to Running, an unrecoverable
// failure closes it, a NextStep keeps it Authenticating.
func (p *Plugin) finishAuthStep(result models.AuthResult, err error) (any, error) {
	if err != nil {
		if apperrors.IsUnrecoverableAuth(err) {
			p.logger.Error().Err(err).Msg("unrecoverable authentication failure")
			// The error reply is still written; the drain in shutdown waits
			// for it before the transport closes.
			p.requestShutdown()
		}
		return nil, err
	}
	if result.Finished() {
		if p.state.current() == StateAuthenticating {
			_ = p.state.to(StateRunning)
		}
		p.logger.Info().Str("user_id", result.Authentication.UserID).Msg("authentication finished")
		return result.Authentication, nil
	}
	if result.NextStep == nil {
		return nil, apperrors.Unknown()
	}
	return result.NextStep, nil
}

func (p *Plugin) handleImportOwnedGames(provider OwnedGamesProvider) handler.MethodFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		games, err := provider.GetOwnedGames(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"owned_games": games}, nil
	}
}

func (p *Plugin) handleImportLocalGames(provider LocalGamesProvider) handler.MethodFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		games, err := provider.GetLocalGames(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"local_games": games}, nil
	}
}

func (p *Plugin) handleImportFriends(provider FriendsProvider) handler.MethodFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		friends, err := provider.GetFriends(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"friend_info_list": friends}, nil
	}
}

type gameIDParams struct {
	GameID string `json:"game_id"`
}

func (p *Plugin) handleGameAction(action func(context.Context, string) error) handler.NotificationFunc {
	return func(ctx context.Context, raw json.RawMessage) error {
		var params gameIDParams
		if err := parseParams(raw, &params); err != nil {
			return err
		}
		return action(ctx, params.GameID)
	}
}
