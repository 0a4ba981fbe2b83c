// Command generic is a minimal integration showing how to wire a plugin
// process: the client launches it with a handshake token and a local port,
// and the plugin connects back and serves until told to shut down.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openlauncher/plugin-go/pkg/config"
	apperrors "github.com/openlauncher/plugin-go/pkg/errors"
	"github.com/openlauncher/plugin-go/pkg/logging"
	"github.com/openlauncher/plugin-go/pkg/models"
	"github.com/openlauncher/plugin-go/pkg/plugin"
	"github.com/openlauncher/plugin-go/pkg/transport"
)

// demoIntegration serves a small fixed library. A real integration talks to
// the platform backend instead.
type demoIntegration struct{}

type demoCredentials struct {
	UserID string `json:"user_id"`
}

func (i *demoIntegration) Authenticate(_ context.Context, stored json.RawMessage) (models.AuthResult, error) {
	if len(stored) == 0 {
		return models.AuthResult{}, apperrors.AuthenticationRequired()
	}
	var creds demoCredentials
	if err := json.Unmarshal(stored, &creds); err != nil || creds.UserID == "" {
		return models.AuthResult{}, apperrors.InvalidCredentials()
	}
	return models.AuthResult{
		Authentication: &models.Authentication{UserID: creds.UserID, UserName: "demo-user"},
	}, nil
}

func (i *demoIntegration) GetOwnedGames(context.Context) ([]models.Game, error) {
	return []models.Game{
		{
			GameID:      "demo-1",
			GameTitle:   "Demo Quest",
			LicenseInfo: models.LicenseInfo{LicenseType: models.LicenseSinglePurchase},
		},
		{
			GameID:      "demo-2",
			GameTitle:   "Demo Quest II",
			LicenseInfo: models.LicenseInfo{LicenseType: models.LicenseFreeToPlay},
		},
	}, nil
}

func (i *demoIntegration) GetLocalGames(context.Context) ([]models.LocalGame, error) {
	return []models.LocalGame{
		{GameID: "demo-1", LocalGameState: models.LocalGameStateInstalled},
	}, nil
}

func (i *demoIntegration) LaunchGame(_ context.Context, gameID string) error {
	fmt.Fprintf(os.Stderr, "would launch %s\n", gameID)
	return nil
}

func run() error {
	// The client starts the plugin as: <binary> <token> <port>.
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: %s <token> <port>", os.Args[0])
	}
	token, port := os.Args[1], os.Args[2]

	_ = godotenv.Load()

	cfg := config.Default()
	if path := os.Getenv("PLUGIN_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := transport.Dial(ctx, "127.0.0.1:"+port)
	if err != nil {
		return fmt.Errorf("connect to client: %w", err)
	}

	p, err := plugin.New(&demoIntegration{}, plugin.Options{
		Platform:       models.PlatformGeneric,
		Version:        "0.1.0",
		HandshakeToken: token,
		Transport:      tr,
		Logger:         &logger,
		Config:         &cfg,
	})
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
