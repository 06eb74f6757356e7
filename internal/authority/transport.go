// Package authority carries turns to the external rules authority over HTTP,
// WebSocket or gRPC, and provides a local stub authority for development.
package authority

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/emberdeck/combat-client-go/internal/config"
	"go.uber.org/zap"
)

const (
	playTurnPath = "/api/game/play"
	enemiesPath  = "/api/enemies/"

	previewLimit = 200
)

// Transport is a connection to the authority.
type Transport interface {
	combat.Authority
	GetEnemy(ctx context.Context, id string) (combat.OpponentProfile, error)
	Close() error
}

// New builds the transport selected by cfg.
func New(cfg config.AuthorityConfig, logger *zap.Logger) (Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Transport {
	case config.TransportHTTP, "":
		return NewHTTPClient(cfg, nil, logger), nil
	case config.TransportWebSocket:
		return NewWSClient(cfg, logger), nil
	case config.TransportGRPC:
		return NewGRPCClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown authority transport %q", cfg.Transport)
	}
}

// decodeEnemy reads an opponent document, accepting the same envelopes as
// turn responses plus an `enemy` wrapper.
func decodeEnemy(body []byte) (combat.OpponentProfile, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return combat.OpponentProfile{}, fmt.Errorf("failed to decode enemy: %w", err)
	}
	for _, key := range []string{"enemy", "result", "data"} {
		if inner, ok := env[key]; ok && len(inner) > 0 && inner[0] == '{' {
			return decodeEnemy(inner)
		}
	}
	var p combat.OpponentProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return combat.OpponentProfile{}, fmt.Errorf("failed to decode enemy: %w", err)
	}
	return p, nil
}

func preview(body []byte) string {
	if len(body) <= previewLimit {
		return string(body)
	}
	return string(body[:previewLimit]) + "..."
}
