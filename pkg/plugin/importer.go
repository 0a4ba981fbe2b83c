package plugin

import (
	"context"
	"encoding/json"

	apperrors "github.com/openlauncher/plugin-go/pkg/errors"
	"github.com/openlauncher/plugin-go/pkg/handler"
	"github.com/openlauncher/plugin-go/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

// importKind names one of the mutually independent import flows. At most one
// import of each kind runs at a time.
type importKind string

const (
	importAchievements    importKind = "achievements"
	importGameTimes       importKind = "game_times"
	importLibrarySettings importKind = "game_library_settings"
	importOSCompatibility importKind = "os_compatibility"
	importUserPresence    importKind = "user_presence"
)

// importConcurrency caps per-item fetches running at once within one flow.
const importConcurrency = 8

// importSpec describes one flow for the shared runner: how to fetch one item
// and how to name the per-item and terminal notifications.
type importSpec struct {
	kind     importKind
	finished string
	failure  string
	idKey    string
	runOne   func(ctx context.Context, id string, importCtx any) (string, any, error)
}

func (p *Plugin) beginImport(kind importKind) error {
	p.importsMu.Lock()
	defer p.importsMu.Unlock()
	if p.imports[kind] {
		return apperrors.ImportInProgress()
	}
	p.imports[kind] = true
	return nil
}

func (p *Plugin) endImport(kind importKind) {
	p.importsMu.Lock()
	defer p.importsMu.Unlock()
	delete(p.imports, kind)
}

type startImportParams struct {
	GameIDs []string `json:"game_ids"`
	UserIDs []string `json:"user_ids"`
}

// startImport runs the shared flow skeleton: reject a duplicate start, run
// the prepare step inside the request so its failure fails the request, then
// fan out per-item fetches in the background. The start request completes
// before any result notification is sent.
func (p *Plugin) startImport(ctx context.Context, spec importSpec, ids []string,
	prepare func(context.Context, []string) (any, error)) error {

	if err := p.beginImport(spec.kind); err != nil {
		return err
	}
	importCtx, err := prepare(ctx, ids)
	if err != nil {
		p.endImport(spec.kind)
		return err
	}

	run := func() { go p.runImport(p.backgroundCtx(), spec, ids, importCtx) }
	// Result notifications must not overtake the reply to the start request.
	if !handler.AfterReply(ctx, run) {
		run()
	}
	return nil
}

// runImport fetches every item and reports each outcome as its own
// notification. One item failing never stops the others, and the finished
// notification is sent in every case.
func (p *Plugin) runImport(ctx context.Context, spec importSpec, ids []string, importCtx any) {
	defer p.endImport(spec.kind)
	defer p.notifyImport(ctx, spec.finished, nil)

	g := new(errgroup.Group)
	g.SetLimit(importConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			method, params, err := spec.runOne(ctx, id, importCtx)
			if err != nil {
				p.logger.Warn().Err(err).
					Str("import", string(spec.kind)).Str(spec.idKey, id).
					Msg("import item failed")
				method = spec.failure
				params = map[string]any{
					spec.idKey: id,
					"error":    apperrors.ToWire(err),
				}
			}
			p.notifyImport(ctx, method, params)
			return nil
		})
	}
	_ = g.Wait()
}

// notifyImport sends one import notification, honoring the outbound rate
// limit.
func (p *Plugin) notifyImport(ctx context.Context, method string, params any) {
	if err := p.notifyLimiter.Wait(ctx); err != nil {
		return
	}
	_ = p.conn.Notify(ctx, method, params, protocol.Sensitive{})
}

func (p *Plugin) handleStartAchievementsImport(imp AchievementsImporter) handler.MethodFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params startImportParams
		if err := parseParams(raw, &params); err != nil {
			return nil, err
		}
		spec := importSpec{
			kind:     importAchievements,
			finished: "achievements_import_finished",
			failure:  "game_achievements_import_failure",
			idKey:    "game_id",
			runOne: func(ctx context.Context, gameID string, importCtx any) (string, any, error) {
				achievements, err := imp.GetUnlockedAchievements(ctx, gameID, importCtx)
				if err != nil {
					return "", nil, err
				}
				return "game_achievements_import_success", map[string]any{
					"game_id":               gameID,
					"unlocked_achievements": achievements,
				}, nil
			},
		}
		return nil, p.startImport(ctx, spec, params.GameIDs, imp.PrepareAchievementsContext)
	}
}

func (p *Plugin) handleStartGameTimesImport(imp GameTimeImporter) handler.MethodFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params startImportParams
		if err := parseParams(raw, &params); err != nil {
			return nil, err
		}
		spec := importSpec{
			kind:     importGameTimes,
			finished: "game_times_import_finished",
			failure:  "game_time_import_failure",
			idKey:    "game_id",
			runOne: func(ctx context.Context, gameID string, importCtx any) (string, any, error) {
				gameTime, err := imp.GetGameTime(ctx, gameID, importCtx)
				if err != nil {
					return "", nil, err
				}
				return "game_time_import_success", map[string]any{"game_time": gameTime}, nil
			},
		}
		return nil, p.startImport(ctx, spec, params.GameIDs, imp.PrepareGameTimesContext)
	}
}

func (p *Plugin) handleStartLibrarySettingsImport(imp LibrarySettingsImporter) handler.MethodFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params startImportParams
		if err := parseParams(raw, &params); err != nil {
			return nil, err
		}
		spec := importSpec{
			kind:     importLibrarySettings,
			finished: "game_library_settings_import_finished",
			failure:  "game_library_settings_import_failure",
			idKey:    "game_id",
			runOne: func(ctx context.Context, gameID string, importCtx any) (string, any, error) {
				settings, err := imp.GetGameLibrarySettings(ctx, gameID, importCtx)
				if err != nil {
					return "", nil, err
				}
				return "game_library_settings_import_success", map[string]any{
					"game_library_settings": settings,
				}, nil
			},
		}
		return nil, p.startImport(ctx, spec, params.GameIDs, imp.PrepareGameLibrarySettingsContext)
	}
}

func (p *Plugin) handleStartOSCompatibilityImport(imp OSCompatibilityImporter) handler.MethodFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params startImportParams
		if err := parseParams(raw, &params); err != nil {
			return nil, err
		}
		spec := importSpec{
			kind:     importOSCompatibility,
			finished: "os_compatibility_import_finished",
			failure:  "os_compatibility_import_failure",
			idKey:    "game_id",
			runOne: func(ctx context.Context, gameID string, importCtx any) (string, any, error) {
				compat, err := imp.GetOSCompatibility(ctx, gameID, importCtx)
				if err != nil {
					return "", nil, err
				}
				return "os_compatibility_import_success", map[string]any{
					"game_id":          gameID,
					"os_compatibility": compat,
				}, nil
			},
		}
		return nil, p.startImport(ctx, spec, params.GameIDs, imp.PrepareOSCompatibilityContext)
	}
}

func (p *Plugin) handleStartUserPresenceImport(imp UserPresenceImporter) handler.MethodFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params startImportParams
		if err := parseParams(raw, &params); err != nil {
			return nil, err
		}
		spec := importSpec{
			kind:     importUserPresence,
			finished: "user_presence_import_finished",
			failure:  "user_presence_import_failure",
			idKey:    "user_id",
			runOne: func(ctx context.Context, userID string, importCtx any) (string, any, error) {
				presence, err := imp.GetUserPresence(ctx, userID, importCtx)
				if err != nil {
					return "", nil, err
				}
				return "user_presence_import_success", map[string]any{
					"user_id":  userID,
					"presence": presence,
				}, nil
			},
		}
		return nil, p.startImport(ctx, spec, params.UserIDs, imp.PrepareUserPresenceContext)
	}
}
