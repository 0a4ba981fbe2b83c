// Package plugingo is a framework for building platform integration plugins
// for a gaming client. A plugin is a separate process the client launches;
// client and plugin speak bidirectional JSON-RPC 2.0 over a single ordered
// byte stream, with newline-delimited frames.
//
// # Overview
//
// An integration implements the Integration interface from pkg/plugin plus
// any of the optional capability interfaces (owned games, local games,
// friends, achievements, game time, presence, launching and installing).
// The framework inspects which interfaces the concrete type satisfies,
// registers the matching protocol methods, and answers the client's
// capability query from that table.
//
// The library is organized into focused packages:
//
//	pkg/protocol/  - JSON-RPC 2.0 envelope codec, frame classification, redaction
//	pkg/transport/ - newline-delimited framing over TCP or any stream
//	pkg/handler/   - request routing and outbound call correlation
//	pkg/errors/    - the closed error taxonomy and its wire mapping
//	pkg/models/    - domain types exchanged with the client
//	pkg/plugin/    - the plugin engine: lifecycle, capability table, imports
//	pkg/config/    - TOML configuration with defaults
//	pkg/logging/   - zerolog construction helpers
//	pkg/metric/    - Prometheus counters and gauges for the engine
//
// # Usage
//
// A minimal integration authenticates and exposes the owned games library:
//
//	type myIntegration struct{}
//
//	func (i *myIntegration) Authenticate(ctx context.Context, stored json.RawMessage) (models.AuthResult, error) {
//		// validate stored credentials against the backend
//		return models.AuthResult{
//			Authentication: &models.Authentication{UserID: "1", UserName: "user"},
//		}, nil
//	}
//
//	func (i *myIntegration) GetOwnedGames(ctx context.Context) ([]models.Game, error) {
//		return fetchLibrary(ctx)
//	}
//
//	func main() {
//		tr, err := transport.Dial(ctx, addr)
//		// ...
//		p, err := plugin.New(&myIntegration{}, plugin.Options{
//			Platform:       models.PlatformGeneric,
//			Version:        "1.0.0",
//			HandshakeToken: token,
//			Transport:      tr,
//		})
//		// ...
//		err = p.Run(ctx)
//	}
//
// See example/generic for a complete runnable integration.
//
// # Concurrency
//
// Inbound frames are read strictly in arrival order by a single reader.
// Handlers run in their own goroutines unless registered as immediate, so a
// slow backend never stalls the stream. Outbound calls suspend only their
// caller; every request is answered exactly once and every pending call is
// settled exactly once, including on disconnect.
package plugingo
